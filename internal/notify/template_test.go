package notify

import "testing"

func TestRenderTemplate(t *testing.T) {
	body := RenderTemplate("Hello {name}, receipt {receipt} totals {total}", map[string]string{
		"name":    "Ana Torres",
		"receipt": "REC-202603-00042",
		"total":   "153.20",
	})

	want := "Hello Ana Torres, receipt REC-202603-00042 totals 153.20"
	if body != want {
		t.Fatalf("RenderTemplate = %q, want %q", body, want)
	}
}

func TestRenderTemplateUnknownTokensPassThrough(t *testing.T) {
	body := RenderTemplate("Hi {name}, see {unknown}", map[string]string{"name": "Luis"})
	if body != "Hi Luis, see {unknown}" {
		t.Fatalf("RenderTemplate = %q", body)
	}
}

func TestRenderTemplateEmptyVars(t *testing.T) {
	if got := RenderTemplate("static text", nil); got != "static text" {
		t.Fatalf("RenderTemplate = %q", got)
	}
}
