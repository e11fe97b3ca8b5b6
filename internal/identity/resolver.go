// Package identity works out which account's inventory to show from the
// context the client was launched with.
package identity

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrNoIdentity is returned when no launch source carries a user id.
var ErrNoIdentity = errors.New("User ID not found. Open via the bot.")

// Source names where a user id was found.
type Source int

const (
	SourceURL Source = iota + 1
	SourceLaunchUser
	SourceQueryID
	SourceInitData
)

func (s Source) String() string {
	switch s {
	case SourceURL:
		return "url"
	case SourceLaunchUser:
		return "launch_user"
	case SourceQueryID:
		return "query_id"
	case SourceInitData:
		return "init_data"
	default:
		return "unknown"
	}
}

// LaunchContext is everything the launcher handed over. All fields are optional.
type LaunchContext struct {
	// URL is the launch link; its user_id query parameter wins over everything else.
	URL string
	// UserID is the id of the launching user, when the launcher supplies one directly.
	UserID string
	// QueryID is the launch query id, "<user id>_<suffix>".
	QueryID string
	// InitData is the raw, URL-encoded launch payload with a JSON "user" parameter.
	InitData string
}

// Identity is a resolved user.
type Identity struct {
	UserID string
	Source Source
}

// Resolver resolves a LaunchContext into an Identity.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver returns a Resolver. A nil logger discards output.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger.Named("identity")}
}

// Resolve tries each source in order and returns the first usable id.
func (r *Resolver) Resolve(lc LaunchContext) (Identity, error) {
	sources := []struct {
		src Source
		fn  func(LaunchContext) string
	}{
		{SourceURL, r.fromURL},
		{SourceLaunchUser, func(lc LaunchContext) string { return lc.UserID }},
		{SourceQueryID, fromQueryID},
		{SourceInitData, r.fromInitData},
	}
	for _, s := range sources {
		raw := strings.TrimSpace(s.fn(lc))
		if raw == "" {
			continue
		}
		id, ok := normalize(raw)
		if !ok {
			r.logger.Debug("ignoring malformed user id", zap.Stringer("source", s.src))
			continue
		}
		r.logger.Debug("identity resolved", zap.Stringer("source", s.src))
		return Identity{UserID: id, Source: s.src}, nil
	}
	return Identity{}, ErrNoIdentity
}

func (r *Resolver) fromURL(lc LaunchContext) string {
	if lc.URL == "" {
		return ""
	}
	u, err := url.Parse(lc.URL)
	if err != nil {
		r.logger.Warn("launch url unparseable", zap.Error(err))
		return ""
	}
	return u.Query().Get("user_id")
}

func fromQueryID(lc LaunchContext) string {
	prefix, _, _ := strings.Cut(lc.QueryID, "_")
	return prefix
}

func (r *Resolver) fromInitData(lc LaunchContext) string {
	if lc.InitData == "" {
		return ""
	}
	params, err := url.ParseQuery(lc.InitData)
	if err != nil {
		r.logger.Warn("init data unparseable", zap.Error(err))
		return ""
	}
	raw := params.Get("user")
	if raw == "" {
		return ""
	}
	var user struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		r.logger.Warn("init data user unparseable", zap.Error(err))
		return ""
	}
	return user.ID.String()
}

// normalize accepts positive decimal ids only.
func normalize(raw string) (string, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return "", false
	}
	return strconv.FormatInt(n, 10), true
}
