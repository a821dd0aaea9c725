package forum

// Profile fields subject to privacy settings.
const (
	FieldEmail       = "email"
	FieldLocation    = "location"
	FieldInterests   = "interests"
	FieldBio         = "bio"
	FieldWebsite     = "website"
	FieldDisplayName = "displayName"
)

// CanViewField reports whether a visitor may see field. Owners see everything;
// others need a public profile and the field's own flag.
func CanViewField(isOwner bool, privacy Privacy, field string) bool {
	if isOwner {
		return true
	}
	if !privacy.PublicProfile {
		return false
	}
	switch field {
	case FieldEmail:
		return privacy.ShowEmail
	case FieldLocation:
		return privacy.ShowLocation
	case FieldInterests:
		return privacy.ShowInterests
	case FieldBio:
		return privacy.ShowBio
	case FieldWebsite:
		return privacy.ShowWebsite
	case FieldDisplayName:
		return privacy.ShowDisplayName
	default:
		return false
	}
}

// ProfileUpdate carries the fields a settings form submitted. Nil fields keep
// their current value.
type ProfileUpdate struct {
	DisplayName *string        `json:"displayName,omitempty"`
	Bio         *string        `json:"bio,omitempty"`
	Location    *string        `json:"location,omitempty"`
	Website     *string        `json:"website,omitempty"`
	Interests   []string       `json:"interests,omitempty"`
	Privacy     *PrivacyUpdate `json:"privacy,omitempty"`
}

// PrivacyUpdate merges into Privacy flag by flag.
type PrivacyUpdate struct {
	PublicProfile   *bool `json:"publicProfile,omitempty"`
	ShowEmail       *bool `json:"showEmail,omitempty"`
	ShowLocation    *bool `json:"showLocation,omitempty"`
	ShowInterests   *bool `json:"showInterests,omitempty"`
	ShowBio         *bool `json:"showBio,omitempty"`
	ShowWebsite     *bool `json:"showWebsite,omitempty"`
	ShowDisplayName *bool `json:"showDisplayName,omitempty"`
}

// MergeProfile applies update on top of existing.
func MergeProfile(existing Profile, update ProfileUpdate) Profile {
	out := existing
	setString(&out.DisplayName, update.DisplayName)
	setString(&out.Bio, update.Bio)
	setString(&out.Location, update.Location)
	setString(&out.Website, update.Website)
	if update.Interests != nil {
		out.Interests = append([]string(nil), update.Interests...)
	}
	if p := update.Privacy; p != nil {
		setBool(&out.Privacy.PublicProfile, p.PublicProfile)
		setBool(&out.Privacy.ShowEmail, p.ShowEmail)
		setBool(&out.Privacy.ShowLocation, p.ShowLocation)
		setBool(&out.Privacy.ShowInterests, p.ShowInterests)
		setBool(&out.Privacy.ShowBio, p.ShowBio)
		setBool(&out.Privacy.ShowWebsite, p.ShowWebsite)
		setBool(&out.Privacy.ShowDisplayName, p.ShowDisplayName)
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// PublicView is a profile with hidden fields blanked out.
type PublicView struct {
	Username    string   `json:"username"`
	Role        Role     `json:"role"`
	Public      bool     `json:"public"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	Location    string   `json:"location,omitempty"`
	Website     string   `json:"website,omitempty"`
	Interests   []string `json:"interests,omitempty"`
}

// ViewProfile returns what viewer may see of u.
func ViewProfile(u User, viewer Identity) PublicView {
	owner := !viewer.IsGuest && viewer.ID == u.ID
	p := u.Profile
	v := PublicView{
		Username: u.Username,
		Role:     u.Role,
		Public:   owner || p.Privacy.PublicProfile,
	}
	if CanViewField(owner, p.Privacy, FieldEmail) {
		v.Email = u.Email
	}
	if CanViewField(owner, p.Privacy, FieldDisplayName) {
		v.DisplayName = p.DisplayName
	}
	if CanViewField(owner, p.Privacy, FieldBio) {
		v.Bio = p.Bio
	}
	if CanViewField(owner, p.Privacy, FieldLocation) {
		v.Location = p.Location
	}
	if CanViewField(owner, p.Privacy, FieldWebsite) {
		v.Website = p.Website
	}
	if CanViewField(owner, p.Privacy, FieldInterests) {
		v.Interests = p.Interests
	}
	return v
}
