package spec

import (
	"strings"
	"testing"
)

func TestExtractKeyOrder_YAMLAndJSON(t *testing.T) {
	t.Parallel()
	yamlDoc := "paths:\n  /z: {}\n  /a/{id}: {}\ncomponents:\n  schemas:\n    Zed: {}\n    Alpha: {}\n"
	jsonDoc := `{"paths": {"/z": {}, "/a/{id}": {}}, "components": {"schemas": {"Zed": {}, "Alpha": {}}}}`
	for name, raw := range map[string]string{"yaml": yamlDoc, "json": jsonDoc} {
		order := ExtractKeyOrder([]byte(raw))
		if got := strings.Join(order["/paths"], ","); got != "/z,/a/{id}" {
			t.Errorf("%s paths: got %q", name, got)
		}
		if got := strings.Join(order["/components/schemas"], ","); got != "Zed,Alpha" {
			t.Errorf("%s schemas: got %q", name, got)
		}
		if _, ok := order["/paths/~1a~1{id}"]; !ok {
			t.Errorf("%s: expected escaped pointer for /a/{id}", name)
		}
	}
}

func TestKeyOrder_Keys(t *testing.T) {
	t.Parallel()
	order := KeyOrder{"/x": {"c", "gone", "a"}}
	got := order.Keys("/x", []string{"a", "b", "c", "d"})
	if strings.Join(got, ",") != "c,a,b,d" {
		t.Fatalf("got %v", got)
	}
	if got := KeyOrder(nil).Keys("/x", []string{"b", "a"}); strings.Join(got, ",") != "a,b" {
		t.Fatalf("nil order: got %v", got)
	}
}

func TestExtractKeyOrder_Garbage(t *testing.T) {
	t.Parallel()
	if order := ExtractKeyOrder([]byte("{: [")); len(order) != 0 {
		t.Fatalf("expected empty order, got %v", order)
	}
}
