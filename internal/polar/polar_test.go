package polar_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"polar-flow-export/internal/fetch"
	"polar-flow-export/internal/logx"
	"polar-flow-export/internal/polar"
)

// flowServer 模拟 Polar Flow，记录每个请求的路径（含查询串）。
type flowServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
	calendar string
}

func newFlowServer(t *testing.T, calendar string) *flowServer {
	t.Helper()
	fs := &flowServer{calendar: calendar}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) { fs.record(r) })
	mux.HandleFunc("/training/getCalendarEvents", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fs.calendar))
	})
	mux.HandleFunc("/x/", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		_, _ = w.Write([]byte("<TrainingCenterDatabase>" + r.URL.Path + "</TrainingCenterDatabase>"))
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *flowServer) record(r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.requests = append(fs.requests, r.URL.RequestURI())
}

func (fs *flowServer) Requests() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.requests...)
}

func newEnumerator(t *testing.T, fs *flowServer) (*polar.Enumerator, *fetch.Client) {
	t.Helper()
	sess, err := fetch.NewSession("u", "p", 0)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	cl, err := fetch.New(fetch.Options{BaseURL: fs.URL}, sess, logx.Discard())
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return polar.NewEnumerator(cl, logx.Discard()), cl
}

const calendarSample = `[
	{"listItemId":"123","datetime":"2015-08-05T10:00:00","type":"EXERCISE","url":"/x/123"},
	{"listItemId":"999","datetime":"2015-08-06T09:00:00","type":"FITNESSDATA","url":"/x/999"},
	{"listItemId":"555","datetime":"2015-08-07T07:30:00","type":"TRAININGTARGET","url":"/x/555"},
	{"listItemId":456,"datetime":"2015-08-08T18:15:00","type":"EXERCISE","url":"/x/456","extra":{"a":1}}
]`

func TestActivities_LoginQueryAndFilter(t *testing.T) {
	fs := newFlowServer(t, calendarSample)
	en, _ := newEnumerator(t, fs)

	acts, err := en.Activities(context.Background(), "2015-08-01", "2015-08-30")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	var ids []string
	for _, a := range acts {
		ids = append(ids, a.ID)
	}
	if diff := cmp.Diff([]string{"123", "456"}, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	if acts[0].Datetime != "2015-08-05T10:00:00" || acts[0].Path() != "/x/123" {
		t.Fatalf("unexpected activity: %+v", acts[0])
	}
	want := []string{"/", "/login", "/training/getCalendarEvents?start=1.8.2015&end=30.8.2015"}
	if diff := cmp.Diff(want, fs.Requests()); diff != "" {
		t.Fatalf("requests (-want +got):\n%s", diff)
	}
}

func TestActivities_SingleCallWhenLoggedIn(t *testing.T) {
	fs := newFlowServer(t, calendarSample)
	en, cl := newEnumerator(t, fs)
	if err := cl.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	before := len(fs.Requests())
	acts, err := en.Activities(context.Background(), "2015-08-01", "2015-08-30")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if n := len(fs.Requests()) - before; n != 1 {
		t.Fatalf("enumeration made %d requests, want 1", n)
	}
	if len(acts) != 2 {
		t.Fatalf("activities = %d, want 2", len(acts))
	}
}

func TestActivity_FetchDeferred(t *testing.T) {
	fs := newFlowServer(t, calendarSample)
	en, _ := newEnumerator(t, fs)
	acts, err := en.Activities(context.Background(), "2015-08-01", "2015-08-30")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	before := len(fs.Requests())
	body, err := acts[1].Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "<TrainingCenterDatabase>/x/456/export/tcx/false</TrainingCenterDatabase>" {
		t.Fatalf("body = %q", body)
	}
	reqs := fs.Requests()[before:]
	if diff := cmp.Diff([]string{"/x/456/export/tcx/false"}, reqs); diff != "" {
		t.Fatalf("fetch requests (-want +got):\n%s", diff)
	}
}

func TestActivities_BadDate(t *testing.T) {
	fs := newFlowServer(t, "[]")
	en, _ := newEnumerator(t, fs)
	_, err := en.Activities(context.Background(), "not a date", "2015-08-30")
	var pe *polar.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if n := len(fs.Requests()); n != 0 {
		t.Fatalf("bad date should not touch network, got %d requests", n)
	}
}

func TestActivities_BadJSONShape(t *testing.T) {
	fs := newFlowServer(t, `{"not":"an array"}`)
	en, _ := newEnumerator(t, fs)
	_, err := en.Activities(context.Background(), "2015-08-01", "2015-08-30")
	var pe *polar.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestActivities_IncompleteEntries(t *testing.T) {
	cases := map[string]string{
		"missing fields": `[{"type":"EXERCISE"}]`,
		"null id":        `[{"listItemId":null,"datetime":"2015-08-05T10:00:00","type":"EXERCISE","url":"/x/7"}]`,
		"empty id":       `[{"listItemId":"","datetime":"2015-08-05T10:00:00","type":"EXERCISE","url":"/x/7"}]`,
		"missing url":    `[{"listItemId":"7","datetime":"2015-08-05T10:00:00","type":"EXERCISE"}]`,
		"missing type":   `[{"listItemId":"7","datetime":"2015-08-05T10:00:00","url":"/x/7"}]`,
		"id with slash":  `[{"listItemId":"../../etc","datetime":"2015-08-05T10:00:00","type":"EXERCISE","url":"/x/7"}]`,
		"dotdot id":      `[{"listItemId":"..","datetime":"2015-08-05T10:00:00","type":"EXERCISE","url":"/x/7"}]`,
		"datetime slash": `[{"listItemId":"7","datetime":"2015/08/05","type":"EXERCISE","url":"/x/7"}]`,
	}
	for name, calendar := range cases {
		t.Run(name, func(t *testing.T) {
			fs := newFlowServer(t, calendar)
			en, _ := newEnumerator(t, fs)
			acts, err := en.Activities(context.Background(), "2015-08-01", "2015-08-30")
			var pe *polar.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v acts = %+v, want *ParseError", err, acts)
			}
			for _, r := range fs.Requests() {
				if strings.Contains(r, "/export/tcx") {
					t.Fatalf("unexpected download %s", r)
				}
			}
		})
	}
}

func TestActivities_ExcludedEntryNeedsOnlyType(t *testing.T) {
	fs := newFlowServer(t, `[{"type":"FITNESSDATA"},{"listItemId":"7","datetime":"2015-08-05T10:00:00","type":"EXERCISE","url":"/x/7"}]`)
	en, _ := newEnumerator(t, fs)
	acts, err := en.Activities(context.Background(), "2015-08-01", "2015-08-30")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(acts) != 1 || acts[0].ID != "7" {
		t.Fatalf("acts = %+v", acts)
	}
}

func TestActivities_CalendarFailure(t *testing.T) {
	fs := newFlowServer(t, "[]")
	en, _ := newEnumerator(t, fs)
	fs.Close()
	_, err := en.Activities(context.Background(), "2015-08-01", "2015-08-30")
	var re *fetch.RequestError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RequestError", err)
	}
}

func TestCalendarDate_NoPadding(t *testing.T) {
	cases := map[string]string{
		"2015-08-01": "1.8.2015",
		"2015-12-31": "31.12.2015",
		"2016-02-09": "9.2.2016",
	}
	for in, want := range cases {
		d, err := polar.ParseDate(in)
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		if got := polar.CalendarDate(d); got != want {
			t.Fatalf("CalendarDate(%s) = %s, want %s", in, got, want)
		}
	}
	if got := polar.CalendarDate(time.Date(2020, time.January, 2, 0, 0, 0, 0, time.UTC)); got != "2.1.2020" {
		t.Fatalf("got %s", got)
	}
}

func TestParseDate_Lenient(t *testing.T) {
	for _, in := range []string{"2015-08-01", "08/01/2015", "Aug 1, 2015", "2015-08-01T10:00:00Z"} {
		d, err := polar.ParseDate(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if d.Year() != 2015 || d.Month() != time.August || d.Day() != 1 {
			t.Fatalf("parse %q = %v", in, d)
		}
	}
}

func TestExcluded(t *testing.T) {
	for typ, want := range map[string]bool{
		"TRAININGTARGET": true,
		"FITNESSDATA":    true,
		"EXERCISE":       false,
		"":               false,
	} {
		if got := polar.Excluded(typ); got != want {
			t.Fatalf("Excluded(%q) = %v, want %v", typ, got, want)
		}
	}
}
