package domain

// Snapshot is the read-only projection of the session state handed to consumers.
// At most one of SystemUser and ClientOwner is set.
type Snapshot struct {
	SystemUser  *SystemUser  `json:"systemUser"`
	ClientOwner *ClientOwner `json:"clientOwner"`
	ActiveKind  Kind         `json:"activeKind"`
	IsLoading   bool         `json:"isLoading"`
}

// Clone returns a deep copy so callers can never reach the manager's state.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		SystemUser:  s.SystemUser.Clone(),
		ClientOwner: s.ClientOwner.Clone(),
		ActiveKind:  s.ActiveKind,
		IsLoading:   s.IsLoading,
	}
}

// Authenticated reports whether any identity is active.
func (s Snapshot) Authenticated() bool {
	return s.ActiveKind != KindNone
}

// Identity is a tagged principal: exactly the payload matching Kind is set.
type Identity struct {
	Kind        Kind
	SystemUser  *SystemUser
	ClientOwner *ClientOwner
}

// Consistent reports whether exactly the payload matching Kind is populated.
func (i Identity) Consistent() bool {
	switch i.Kind {
	case KindSystem:
		return i.SystemUser != nil && i.ClientOwner == nil
	case KindClient:
		return i.ClientOwner != nil && i.SystemUser == nil
	}
	return false
}

// LoginResult is what the login gateway resolves credentials to.
type LoginResult struct {
	Token string
	Identity
}

// Consistent reports whether the result carries a token and a well-formed identity.
func (r LoginResult) Consistent() bool {
	return r.Token != "" && r.Identity.Consistent()
}

// ProfileUpdate carries a self-service profile change. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"     validate:"omitempty,min=1,max=120"`
	Email    *string `json:"email,omitempty"    validate:"omitempty,email"`
	Phone    *string `json:"phone,omitempty"    validate:"omitempty,max=40"`
	Address  *string `json:"address,omitempty"  validate:"omitempty,max=200"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8"`
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Address == nil && p.Password == nil
}

// AccessResult is the outcome of an authorization check against the active session.
type AccessResult struct {
	HasAccess bool        `json:"hasAccess"`
	User      *SystemUser `json:"user"`
}

// HasAccess decides whether the active system user may use something restricted to allowed.
// An empty allowed list admits any system user; client sessions never pass.
func HasAccess(s Snapshot, allowed ...Role) AccessResult {
	if s.SystemUser == nil {
		return AccessResult{}
	}
	user := s.SystemUser.Clone()
	if len(allowed) == 0 {
		return AccessResult{HasAccess: true, User: user}
	}
	for _, r := range allowed {
		if r == user.Role {
			return AccessResult{HasAccess: true, User: user}
		}
	}
	return AccessResult{HasAccess: false, User: user}
}
