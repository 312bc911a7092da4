package alarm

// Actor identifies who issued a command, for the audit log.
type Actor struct {
	Hostname string
	Username string
}

// String returns "user@host", or an empty string for an unknown actor.
func (a *Actor) String() string {
	if a == nil || (a.Hostname == "" && a.Username == "") {
		return ""
	}

	return a.Username + "@" + a.Hostname
}
