package audit

import "github.com/teamplatform/teamplatform/internal/model"

// KeyIssued records the creation of an API key. The plaintext key must
// never be passed here.
func (r *Recorder) KeyIssued(ac Context, keyID, name string, permissions []string) {
	r.Record(ac, Entry{
		Action:     model.ActionAPIKeyCreate,
		Resource:   model.ResourceAPIKey,
		ResourceID: keyID,
		Details:    model.Details{"name": name, "permissions": permissions},
	})
}

// KeyRevoked records the revocation of an API key.
func (r *Recorder) KeyRevoked(ac Context, keyID string) {
	r.Record(ac, Entry{
		Action:     model.ActionAPIKeyRevoke,
		Resource:   model.ResourceAPIKey,
		ResourceID: keyID,
	})
}

func (r *Recorder) RosterCreated(ac Context, rosterID string, details model.Details) {
	r.Record(ac, Entry{Action: model.ActionRosterCreate, Resource: model.ResourceRoster, ResourceID: rosterID, Details: details})
}

func (r *Recorder) RosterDeleted(ac Context, rosterID string, details model.Details) {
	r.Record(ac, Entry{Action: model.ActionRosterDelete, Resource: model.ResourceRoster, ResourceID: rosterID, Details: details})
}

// UserLoggedIn records a successful sign-in.
func (r *Recorder) UserLoggedIn(ac Context, userID string) {
	r.Record(ac, Entry{Action: model.ActionUserLogin, Resource: model.ResourceUser, ResourceID: userID})
}

// LoginFailed records a rejected sign-in attempt. Only the email is kept.
func (r *Recorder) LoginFailed(ac Context, email string, cause error) {
	r.RecordFailure(ac, Entry{
		Action:   model.ActionUserLogin,
		Resource: model.ResourceUser,
		Details:  model.Details{"email": email},
	}, cause)
}

func (r *Recorder) UserLoggedOut(ac Context, userID string) {
	r.Record(ac, Entry{Action: model.ActionUserLogout, Resource: model.ResourceUser, ResourceID: userID})
}

func (r *Recorder) UserCreated(ac Context, userID string, details model.Details) {
	r.Record(ac, Entry{Action: model.ActionUserCreate, Resource: model.ResourceUser, ResourceID: userID, Details: details})
}
