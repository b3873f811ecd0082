//go:build !windows

package osutils

import (
	"os"
	"os/user"
	"slices"
	"strconv"
)

// inGroup reports whether the process has name among its groups.
func inGroup(name string) bool {
	g, err := user.LookupGroup(name)
	if err != nil {
		return false
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return false
	}
	groups, err := os.Getgroups()
	if err != nil {
		return false
	}
	return os.Getegid() == gid || slices.Contains(groups, gid)
}
