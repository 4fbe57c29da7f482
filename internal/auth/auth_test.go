package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "steppr.identity"}

func TestParseRoundTrip(t *testing.T) {
	token, err := Issue(testConfig, "u1", "Una", "u1@example.com", []string{ScopeActivitiesRead, ScopeProfileRead}, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.True(t, claims.HasScope(ScopeActivitiesRead))
	require.False(t, claims.HasScope(ScopeActivitiesWrite))

	id := claims.Identity()
	require.Equal(t, "u1", id.UserID)
	require.Equal(t, "Una", id.DisplayName)
	require.Equal(t, "u1@example.com", id.Email)
}

func TestParseRejectsBadTokens(t *testing.T) {
	_, err := Parse("", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)

	wrongIssuer, err := Issue(Config{Secret: testConfig.Secret, Issuer: "elsewhere"}, "u1", "", "", nil, time.Hour)
	require.NoError(t, err)
	_, err = Parse(wrongIssuer, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := Issue(testConfig, "u1", "", "", nil, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	noSubject, err := Issue(testConfig, "", "", "", nil, time.Hour)
	require.NoError(t, err)
	_, err = Parse(noSubject, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAcceptsScopeArrays(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "u2",
		"iss":    testConfig.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": []string{ScopeChallengesRead, ScopeChallengesWrite},
	}).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeChallengesWrite))
	require.False(t, claims.HasScope(ScopeProfileRead))
}

func TestParseRejectsForeignSignatures(t *testing.T) {
	forged, err := Issue(Config{Secret: "other-secret", Issuer: testConfig.Issuer}, "u1", "", "", nil, time.Hour)
	require.NoError(t, err)
	_, err = Parse(forged, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"iss": testConfig.Issuer,
	}).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)
	_, err = Parse(noExpiry, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u1",
		"iss": testConfig.Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = Parse(unsigned, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testConfig, SkipPaths("/healthz"), nil).Wrap(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/profile", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"type":"UNAUTHENTICATED","detail":"`+ErrMissingToken.Error()+`"}`, rec.Body.String())

	token, err := Issue(testConfig, "u7", "", "", AllScopes, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "u7", seen.Subject)
}
