package identity

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	initData := "query_id=AAE&user=%7B%22id%22%3A444%2C%22first_name%22%3A%22Ann%22%7D&auth_date=1"

	tests := []struct {
		name    string
		lc      LaunchContext
		wantID  string
		wantSrc Source
	}{
		{
			name:    "url wins",
			lc:      LaunchContext{URL: "https://vault.example/app?user_id=111", UserID: "222", QueryID: "333_x", InitData: initData},
			wantID:  "111",
			wantSrc: SourceURL,
		},
		{
			name:    "launch user",
			lc:      LaunchContext{URL: "https://vault.example/app", UserID: "222", QueryID: "333_x"},
			wantID:  "222",
			wantSrc: SourceLaunchUser,
		},
		{
			name:    "query id prefix",
			lc:      LaunchContext{QueryID: "333_abcdef", InitData: initData},
			wantID:  "333",
			wantSrc: SourceQueryID,
		},
		{
			name:    "init data user",
			lc:      LaunchContext{QueryID: "AAHdF6IQ", InitData: initData},
			wantID:  "444",
			wantSrc: SourceInitData,
		},
		{
			name:    "malformed url id falls through",
			lc:      LaunchContext{URL: "https://vault.example/app?user_id=abc", UserID: "222"},
			wantID:  "222",
			wantSrc: SourceLaunchUser,
		},
		{
			name:    "zero id falls through",
			lc:      LaunchContext{UserID: "0", QueryID: "333"},
			wantID:  "333",
			wantSrc: SourceQueryID,
		},
	}

	r := NewResolver(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.lc)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got.UserID != tt.wantID || got.Source != tt.wantSrc {
				t.Errorf("Resolve = %+v, want id=%s source=%s", got, tt.wantID, tt.wantSrc)
			}
		})
	}
}

func TestResolve_NoIdentity(t *testing.T) {
	r := NewResolver(nil)
	cases := []LaunchContext{
		{},
		{URL: "://bad"},
		{InitData: "user=not-json"},
		{InitData: "%zz"},
		{QueryID: "_suffix"},
	}
	for _, lc := range cases {
		_, err := r.Resolve(lc)
		if !errors.Is(err, ErrNoIdentity) {
			t.Errorf("Resolve(%+v) error = %v, want ErrNoIdentity", lc, err)
		}
	}
	if ErrNoIdentity.Error() != "User ID not found. Open via the bot." {
		t.Errorf("message = %q", ErrNoIdentity.Error())
	}
}

func TestSourceString(t *testing.T) {
	if SourceInitData.String() != "init_data" || Source(0).String() != "unknown" {
		t.Error("unexpected Source names")
	}
}
