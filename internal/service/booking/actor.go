package booking

// Source tags who initiated a mutation in audit details.
type Source string

const (
	SourceStaff       Source = "staff"
	SourcePublic      Source = "public"
	SourcePublicToken Source = "public_token"
	SourceSystem      Source = "system"
)

// Actor is the opaque identity behind a call. A nil ID means system or
// public-token initiated. WorkspaceID, when set, scopes the call to one tenant.
type Actor struct {
	ID          *string
	WorkspaceID int64
	Source      Source
}

func StaffActor(id string, workspaceID int64) Actor {
	return Actor{ID: &id, WorkspaceID: workspaceID, Source: SourceStaff}
}

// TokenActor is used for cancel/reschedule links; it is scoped to the booking, not a workspace.
func TokenActor() Actor {
	return Actor{Source: SourcePublicToken}
}

func PublicActor(workspaceID int64) Actor {
	return Actor{WorkspaceID: workspaceID, Source: SourcePublic}
}

func SystemActor() Actor {
	return Actor{Source: SourceSystem}
}

func (a Actor) source() string {
	if a.Source == "" {
		return string(SourceSystem)
	}
	return string(a.Source)
}

// allows reports whether the actor may touch an entity of workspaceID.
func (a Actor) allows(workspaceID int64) bool {
	return a.WorkspaceID == 0 || a.WorkspaceID == workspaceID
}
