package profile

// Info represents profile information for listing and display.
type Info struct {
	Name  string   `json:"name"`
	Mode  Mode     `json:"mode"`
	Group []string `json:"group,omitempty"`
	Dir   string   `json:"dir"`
}

// Status represents everything known about a loaded profile.
// Secrets inside Options marshal as a placeholder.
type Status struct {
	Metadata
	Mode       Mode     `json:"mode"`
	Dir        string   `json:"dir"`
	Options    Options  `json:"options"`
	LaunchArgs []string `json:"launch_args,omitempty"`
	ArgsError  string   `json:"args_error,omitempty"`
}

// Status builds the Status of p. Launch arguments have the password
// replaced by a placeholder.
func (p *Profile) Status() Status {
	s := Status{
		Metadata: p.metadata,
		Mode:     p.Mode(),
		Dir:      p.dir,
		Options:  p.config.Options,
	}
	args, err := p.LaunchArgs()
	if err != nil {
		s.ArgsError = err.Error()
		return s
	}
	s.LaunchArgs = RedactArgs(args)
	return s
}

// RedactArgs returns a copy of args with the value following --password
// replaced by a placeholder.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i+1 < len(out); i++ {
		if out[i] == "--password" {
			out[i+1] = redacted
			i++
		}
	}
	return out
}
