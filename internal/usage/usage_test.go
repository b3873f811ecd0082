package usage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func TestHTTPNotifierPostsShortcut(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got <- body["shortcut"]
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, "secret", time.Second, nil)
	n.Notify("brb")
	n.Wait()

	assert.Equal(t, "brb", <-got)
}

func TestHTTPNotifierDoesNotBlockOnSlowServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	n := NewHTTPNotifier(srv.URL, "", 20*time.Millisecond, nil)

	start := time.Now()
	n.Notify("sig")
	assert.Less(t, time.Since(start), 10*time.Millisecond)

	n.Wait()
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPNotifierSwallowsConnectionErrors(t *testing.T) {
	n := NewHTTPNotifier("http://127.0.0.1:1/none", "", 0, nil)
	n.Notify("x")
	n.Wait()
}

func TestTrackerOrdersByRecency(t *testing.T) {
	tr := NewTracker(2)
	tr.Record("a")
	tr.Record("b")
	tr.Record("a")
	tr.Record("c")

	recent := tr.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Shortcut)
	assert.Equal(t, "a", recent[1].Shortcut)
	assert.Equal(t, 2, recent[1].Count)
}

func TestTrackerOnUse(t *testing.T) {
	tr := NewTracker(5)
	var seen []Entry
	tr.OnUse(func(e Entry) { seen = append(seen, e) })

	tr.Notify("x")
	tr.Notify("x")
	require.Len(t, seen, 2)
	assert.Equal(t, 2, seen[1].Count)
}

func TestFuncAndMulti(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var got []string
	wg.Add(2)
	f := Func(func(s string) {
		defer wg.Done()
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	Multi{f, Nop{}, f}.Notify("k")
	wg.Wait()
	assert.Equal(t, []string{"k", "k"}, got)
}
