//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

// Poll results the fake explorer hands out per contract address suffix
const (
	resultPending  = "Pending in queue"
	resultVerified = "Pass - Verified"
	resultFailed   = "Fail - Unable to verify"
)

// fakeExplorer is an Etherscan-compatible API. Addresses ending in
// "dead" fail verification, "beef" stay pending, everything else verifies.
type fakeExplorer struct {
	mu          sync.Mutex
	submissions map[string]string // guid -> address
	polls       map[string]int
}

func newFakeExplorer() *fakeExplorer {
	return &fakeExplorer{
		submissions: make(map[string]string),
		polls:       make(map[string]int),
	}
}

func (f *fakeExplorer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			f.reply(w, "0", "NOTOK", err.Error())
			return
		}
		if r.PostForm.Get("apikey") == "" {
			f.reply(w, "0", "NOTOK", "Missing API Key")
			return
		}
		address := strings.ToLower(r.PostForm.Get("contractaddress"))
		guid := "guid-" + address

		f.mu.Lock()
		f.submissions[guid] = address
		f.mu.Unlock()

		f.reply(w, "1", "OK", guid)
		return
	}

	guid := r.URL.Query().Get("guid")
	f.mu.Lock()
	address, ok := f.submissions[guid]
	f.polls[guid]++
	f.mu.Unlock()

	switch {
	case !ok:
		f.reply(w, "0", "NOTOK", "Unknown UID")
	case strings.HasSuffix(address, "dead"):
		f.reply(w, "0", "NOTOK", resultFailed)
	case strings.HasSuffix(address, "beef"):
		f.reply(w, "0", "NOTOK", resultPending)
	default:
		f.reply(w, "1", "OK", resultVerified)
	}
}

func (f *fakeExplorer) reply(w http.ResponseWriter, status, message, result string) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  status,
		"message": message,
		"result":  result,
	})
}

func (f *fakeExplorer) pollCount(guid string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[guid]
}
