package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DiamondLightSource/pytac/pkg/cs"
	"github.com/DiamondLightSource/pytac/pkg/lattice"
	"github.com/DiamondLightSource/pytac/pkg/registry"
	"github.com/DiamondLightSource/pytac/pkg/units"
)

func f64(v float64) *float64 {
	return &v
}

func testRouter(t *testing.T) (http.Handler, *cs.MockClient) {
	t.Helper()

	client := cs.NewMock(map[string]float64{
		"SR01A-PC-Q1:I":    100,
		"SR01A-PC-Q1:SETI": 100,
	})

	quad := lattice.NewElement("SR01A-PC-Q1", 1, lattice.Quadrupole, 0.4)
	quad.AddToFamily("QUAD")
	quad.AddDevice("b1", lattice.NewDevice("SR01A-PC-Q1", client, "SR01A-PC-Q1:I", "SR01A-PC-Q1:SETI"))

	rows := []registry.UnitConvRow{
		{ElementID: 1, Field: "b1", Kind: units.Poly, ConvID: 1, PhysUnits: "m^-2", EngUnits: "A", LowerLimit: f64(0), UpperLimit: f64(200)},
	}
	polys := []registry.PolyRow{
		{ConvID: 1, Index: 0, Value: 0},
		{ConvID: 1, Index: 1, Value: 0.05},
	}
	reg, err := registry.Build(rows, polys, nil, nil)
	if err != nil {
		t.Fatalf("registry.Build returned error: %v", err)
	}

	lat := lattice.New("test", 3000)
	lat.AddElement(quad)
	lat.SetRegistry(reg)

	return New(lat).setupRoutes(), client
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetInfo(t *testing.T) {
	h, _ := testRouter(t)

	w := do(t, h, "GET", "/info", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /info = %d: %s", w.Code, w.Body.String())
	}

	var info struct {
		Name     string  `json:"name"`
		Elements int     `json:"elements"`
		Energy   float64 `json:"energy"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to unmarshal info: %v", err)
	}
	if info.Name != "test" || info.Elements != 1 || info.Energy != 3000 {
		t.Errorf("info = %+v", info)
	}
}

func TestGetElement(t *testing.T) {
	h, _ := testRouter(t)

	w := do(t, h, "GET", "/elements/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /elements/1 = %d: %s", w.Code, w.Body.String())
	}

	var e elementInfo
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("failed to unmarshal element: %v", err)
	}
	if e.Name != "SR01A-PC-Q1" || e.Type != "QUAD" {
		t.Errorf("element = %+v", e)
	}
}

func TestGetElementNotFound(t *testing.T) {
	h, _ := testRouter(t)

	if w := do(t, h, "GET", "/elements/99", ""); w.Code != http.StatusNotFound {
		t.Errorf("GET /elements/99 = %d, want 404", w.Code)
	}
	if w := do(t, h, "GET", "/elements/nonsense", ""); w.Code != http.StatusBadRequest {
		t.Errorf("GET /elements/nonsense = %d, want 400", w.Code)
	}
}

func TestGetValuePhysics(t *testing.T) {
	h, _ := testRouter(t)

	w := do(t, h, "GET", "/elements/1/fields/b1/value?unit=physics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET value = %d: %s", w.Code, w.Body.String())
	}

	var v valueResponse
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if math.Abs(v.Value-5) > 1e-9 || v.Unit != "physics" {
		t.Errorf("value = %+v, want 5 physics", v)
	}
}

func TestGetValueBadUnit(t *testing.T) {
	h, _ := testRouter(t)

	if w := do(t, h, "GET", "/elements/1/fields/b1/value?unit=bogus", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad unit = %d, want 400", w.Code)
	}
}

func TestPutValueConvertsAndClamps(t *testing.T) {
	h, client := testRouter(t)

	// 1000 m^-2 converts to 20000 A, clamped to the 200 A upper limit.
	w := do(t, h, "PUT", "/elements/1/fields/b1/value", `{"value": 1000, "unit": "physics"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT value = %d: %s", w.Code, w.Body.String())
	}

	got, err := client.Get(context.Background(), "SR01A-PC-Q1:SETI")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if math.Abs(got-200) > 1e-9 {
		t.Errorf("setpoint = %g, want clamped 200", got)
	}
}

func TestGetUnitConv(t *testing.T) {
	h, _ := testRouter(t)

	w := do(t, h, "GET", "/elements/1/fields/b1/unitconv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET unitconv = %d: %s", w.Code, w.Body.String())
	}

	var uc unitConvInfo
	if err := json.Unmarshal(w.Body.Bytes(), &uc); err != nil {
		t.Fatalf("failed to unmarshal unitconv: %v", err)
	}
	if uc.Kind != "poly" || uc.PhysUnits != "m^-2" || uc.UpperLimit == nil || *uc.UpperLimit != 200 {
		t.Errorf("unitconv = %+v", uc)
	}
}

func TestConvert(t *testing.T) {
	h, _ := testRouter(t)

	w := do(t, h, "POST", "/convert", `{"element": 1, "field": "b1", "value": 100, "origin": "engineering", "target": "physics"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /convert = %d: %s", w.Code, w.Body.String())
	}

	var v valueResponse
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if math.Abs(v.Value-5) > 1e-9 {
		t.Errorf("converted value = %g, want 5", v.Value)
	}
}

func TestConvertSameUnitIsIdentity(t *testing.T) {
	h, _ := testRouter(t)

	w := do(t, h, "POST", "/convert", `{"element": 1, "field": "b1", "value": 123, "origin": "physics", "target": "physics"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /convert = %d: %s", w.Code, w.Body.String())
	}

	var v valueResponse
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if v.Value != 123 {
		t.Errorf("same-unit conversion = %g, want 123", v.Value)
	}
}
