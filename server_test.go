package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"i4.energy/across/atsniff/at"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts
}

func getRecords(t *testing.T, url string) ([]at.Record, int) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}
	var records []at.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	return records, resp.StatusCode
}

func TestServerRecords(t *testing.T) {
	srv, ts := newTestServer(t)

	srv.Publish(at.Record{Frame: 1, Key: "a", Role: at.DTE})
	srv.Publish(at.Record{Frame: 2, Key: "b", Role: at.DCE})
	srv.Publish(at.Record{Frame: 3, Key: "a", Role: at.DCE})

	tests := []struct {
		name     string
		query    string
		expected []uint64
	}{
		{name: "All", query: "", expected: []uint64{1, 2, 3}},
		{name: "One session", query: "?session=a", expected: []uint64{1, 3}},
		{name: "Limit keeps the newest", query: "?limit=2", expected: []uint64{2, 3}},
		{name: "Limit zero", query: "?limit=0", expected: []uint64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, status := getRecords(t, ts.URL+"/records"+tt.query)
			if status != http.StatusOK {
				t.Fatalf("status = %d", status)
			}
			if len(records) != len(tt.expected) {
				t.Fatalf("expected %d records, got %d", len(tt.expected), len(records))
			}
			for i, rec := range records {
				if rec.Frame != tt.expected[i] {
					t.Errorf("record %d is frame %d, want %d", i, rec.Frame, tt.expected[i])
				}
			}
		})
	}

	t.Run("Invalid limit", func(t *testing.T) {
		if _, status := getRecords(t, ts.URL+"/records?limit=-1"); status != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", status, http.StatusBadRequest)
		}
	})

	t.Run("Method not allowed", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/records", "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
		}
	})
}

func TestServerRecentRecordsBounded(t *testing.T) {
	srv, ts := newTestServer(t)
	for i := range recentRecords + 10 {
		srv.Publish(at.Record{Frame: uint64(i + 1)})
	}
	records, _ := getRecords(t, ts.URL+"/records")
	if len(records) != recentRecords || records[0].Frame != 11 {
		t.Errorf("got %d records starting at frame %d", len(records), records[0].Frame)
	}
}

func TestServerWebSocket(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.Publish(at.Record{Frame: 1, Key: "tap"})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() at.Record {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var rec at.Record
		if err := conn.ReadJSON(&rec); err != nil {
			t.Fatalf("read: %v", err)
		}
		return rec
	}

	if rec := read(); rec.Frame != 1 {
		t.Errorf("backlog record is frame %d", rec.Frame)
	}

	srv.Publish(at.Record{Frame: 2, Key: "tap", Commands: []at.Command{{Name: "+CSQ"}}})
	rec := read()
	if rec.Frame != 2 || len(rec.Commands) != 1 || rec.Commands[0].Name != "+CSQ" {
		t.Errorf("published record = %+v", rec)
	}
}
