package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hirestimer/pkg/hrtime"

	"gotest.tools/v3/assert"
)

type stubBackend struct{}

func (stubBackend) Start(hrtime.Period) error { return nil }
func (stubBackend) Stop(hrtime.Period) error  { return nil }

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	reg := hrtime.NewRegistry(stubBackend{}, nil, nil)
	t.Cleanup(reg.Close)

	s := NewServer(reg, nil, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) int {
	t.Helper()
	b, err := json.Marshal(body)
	assert.NilError(t, err)

	rsp, err := http.Post(url, "application/json", bytes.NewReader(b))
	assert.NilError(t, err)
	defer rsp.Body.Close()

	if out != nil {
		assert.NilError(t, json.NewDecoder(rsp.Body).Decode(out))
	}
	return rsp.StatusCode
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	rsp, err := http.Get(url)
	assert.NilError(t, err)
	defer rsp.Body.Close()

	if out != nil {
		assert.NilError(t, json.NewDecoder(rsp.Body).Decode(out))
	}
	return rsp.StatusCode
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)

	var ack acquireResp
	code := postJSON(t, ts.URL+"/v1/handles/acquire", acquireReq{DurationMS: 1, TTLMS: 5000}, &ack)
	assert.Equal(t, code, http.StatusOK)
	assert.Assert(t, ack.HandleID != "")
	assert.Equal(t, ack.ClassMS, int64(1))
	assert.Assert(t, ack.Elevated)

	var res resolutionResp
	code = getJSON(t, ts.URL+"/v1/resolution", &res)
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, res.ActiveClassMS, int64(1))
	assert.Equal(t, res.LiveHandles, 1)
	assert.Equal(t, res.RemoteHandles, 1)

	var rel releaseResp
	code = postJSON(t, ts.URL+"/v1/handles/"+ack.HandleID+"/release", struct{}{}, &rel)
	assert.Equal(t, code, http.StatusOK)
	assert.Assert(t, rel.Released)

	code = getJSON(t, ts.URL+"/v1/resolution", &res)
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, res.ActiveClassMS, int64(0))
	assert.Equal(t, res.RemoteHandles, 0)

	// release is idempotent towards swept or repeated calls
	code = postJSON(t, ts.URL+"/v1/handles/"+ack.HandleID+"/release", struct{}{}, &rel)
	assert.Equal(t, code, http.StatusOK)
	assert.Assert(t, !rel.Released)
	assert.Equal(t, rel.Reason, "NOT_FOUND")
}

func TestUpdateChangesClass(t *testing.T) {
	_, ts := newTestServer(t)

	var ack acquireResp
	postJSON(t, ts.URL+"/v1/handles/acquire", acquireReq{DurationMS: 1, TTLMS: 5000}, &ack)

	var upd updateResp
	code := postJSON(t, ts.URL+"/v1/handles/"+ack.HandleID+"/update", updateReq{DurationMS: 40}, &upd)
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, upd.ClassMS, int64(hrtime.PeriodMax))
	assert.Assert(t, !upd.Elevated)

	var res resolutionResp
	getJSON(t, ts.URL+"/v1/resolution", &res)
	assert.Equal(t, res.ActiveClassMS, int64(0), "coarse request must not elevate")

	var rel releaseResp
	postJSON(t, ts.URL+"/v1/handles/"+ack.HandleID+"/release", struct{}{}, &rel)
}

func TestRenewUnknownHandle(t *testing.T) {
	_, ts := newTestServer(t)

	var out renewResp
	code := postJSON(t, ts.URL+"/v1/handles/nope/renew", renewReq{ExtendByMS: 1000}, &out)
	assert.Equal(t, code, http.StatusNotFound)
	assert.Equal(t, out.Reason, "NOT_FOUND")
}

func TestAcquireValidation(t *testing.T) {
	_, ts := newTestServer(t)

	code := postJSON(t, ts.URL+"/v1/handles/acquire", acquireReq{DurationMS: 1, TTLMS: 0}, nil)
	assert.Equal(t, code, http.StatusBadRequest)

	code = postJSON(t, ts.URL+"/v1/handles/acquire", acquireReq{DurationMS: -1, TTLMS: 1000}, nil)
	assert.Equal(t, code, http.StatusBadRequest)
}

func TestLeaseSweepReleasesExpiredHandles(t *testing.T) {
	s, ts := newTestServer(t)

	var ack acquireResp
	postJSON(t, ts.URL+"/v1/handles/acquire", acquireReq{DurationMS: 1, TTLMS: 10}, &ack)

	var res resolutionResp
	getJSON(t, ts.URL+"/v1/resolution", &res)
	assert.Equal(t, res.ActiveClassMS, int64(1))

	time.Sleep(30 * time.Millisecond)

	mon := NewLeaseMonitor(s, nil, nil, time.Hour)
	mon.sweepOnce()

	getJSON(t, ts.URL+"/v1/resolution", &res)
	assert.Equal(t, res.ActiveClassMS, int64(0), "expired lease must release its handle")
	assert.Equal(t, res.RemoteHandles, 0)

	// Renewing after the sweep reports the handle gone.
	var rnw renewResp
	code := postJSON(t, ts.URL+"/v1/handles/"+ack.HandleID+"/renew", renewReq{ExtendByMS: 1000}, &rnw)
	assert.Equal(t, code, http.StatusNotFound)
}
