package auth

// OAuth scopes understood by the Steppr API.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
	ScopeChallengesWrite = "challenges:write"
	ScopeChallengesRead  = "challenges:read"
	ScopeProfileWrite    = "profile:write"
	ScopeProfileRead     = "profile:read"
)

// AllScopes lists every scope, for issuing development tokens.
var AllScopes = []string{
	ScopeActivitiesWrite,
	ScopeActivitiesRead,
	ScopeChallengesWrite,
	ScopeChallengesRead,
	ScopeProfileWrite,
	ScopeProfileRead,
}
