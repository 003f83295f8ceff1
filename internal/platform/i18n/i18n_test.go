package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/language"
)

func TestResolveTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		query       string
		cookie      string
		accept      string
		want        language.Tag
		wantPersist bool
	}{
		{name: "default", want: language.AmericanEnglish},
		{name: "query", query: "pt-BR", want: language.BrazilianPortuguese, wantPersist: true},
		{name: "query base language", query: "pt", want: language.BrazilianPortuguese, wantPersist: true},
		{name: "cookie", cookie: "pt-BR", want: language.BrazilianPortuguese},
		{name: "accept language", accept: "pt-BR,pt;q=0.9,en;q=0.5", want: language.BrazilianPortuguese},
		{name: "query wins over cookie", query: "en-US", cookie: "pt-BR", want: language.AmericanEnglish, wantPersist: true},
		{name: "invalid query falls through", query: "???", cookie: "pt-BR", want: language.BrazilianPortuguese},
		{name: "unsupported accept", accept: "ja", want: language.AmericanEnglish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/party/"
			if tt.query != "" {
				target += "?lang=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			got, persist := ResolveTag(req)
			if got != tt.want {
				t.Fatalf("tag = %v, want %v", got, tt.want)
			}
			if persist != tt.wantPersist {
				t.Fatalf("persist = %v, want %v", persist, tt.wantPersist)
			}
		})
	}
}

func TestResolveTagNilRequest(t *testing.T) {
	t.Parallel()

	if got, _ := ResolveTag(nil); got != DefaultTag() {
		t.Fatalf("tag = %v, want default", got)
	}
}

func TestSetLanguageCookie(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	SetLanguageCookie(rec, language.BrazilianPortuguese)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	if cookies[0].Name != LangCookieName || cookies[0].Value != "pt-BR" {
		t.Fatalf("cookie = %s=%s", cookies[0].Name, cookies[0].Value)
	}
}

func TestPrinterUsesCatalog(t *testing.T) {
	t.Parallel()

	if got := Printer(language.AmericanEnglish).Sprintf("party.mode.label", "All"); got != "Filter: All" {
		t.Fatalf("label = %q", got)
	}
}

func TestSupportedTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	tags := SupportedTags()
	tags[0] = language.Japanese
	if DefaultTag() != language.AmericanEnglish {
		t.Fatal("SupportedTags leaked internal slice")
	}
}
