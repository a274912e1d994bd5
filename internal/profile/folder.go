package profile

// Folder is a node of the profile tree: exactly one of Profile or Group is set.
type Folder struct {
	Profile *Profile
	Group   *Group
}

// Group is a named, never empty collection of profiles and subgroups.
type Group struct {
	DisplayName string
	Path        string
	Children    []*Folder
}

// IsGroup reports whether f is a group node.
func (f *Folder) IsGroup() bool {
	return f.Group != nil
}

// DisplayName returns the profile's or group's display name.
func (f *Folder) DisplayName() string {
	if f.Group != nil {
		return f.Group.DisplayName
	}
	return f.Profile.DisplayName()
}

// ProfileCount recursively counts the profiles within f.
// A nil Folder has no profiles.
func (f *Folder) ProfileCount() int {
	switch {
	case f == nil:
		return 0
	case f.Group == nil:
		return 1
	}
	n := 0
	for _, child := range f.Group.Children {
		n += child.ProfileCount()
	}
	return n
}

// Profiles returns every profile within f, depth first, in directory order.
func (f *Folder) Profiles() []*Profile {
	var out []*Profile
	f.Walk(func(path []string, node *Folder) {
		if node.Profile != nil {
			out = append(out, node.Profile)
		}
	})
	return out
}

// Lookup returns the profile named name, if any.
func (f *Folder) Lookup(name string) (*Profile, bool) {
	switch {
	case f == nil:
		return nil, false
	case f.Group == nil:
		if f.Profile.DisplayName() == name {
			return f.Profile, true
		}
		return nil, false
	}
	for _, child := range f.Group.Children {
		if p, ok := child.Lookup(name); ok {
			return p, true
		}
	}
	return nil, false
}

// Walk calls fn for f and every node below it, depth first. path holds the
// display names of the groups enclosing node, outermost first.
func (f *Folder) Walk(fn func(path []string, node *Folder)) {
	f.walk(nil, fn)
}

func (f *Folder) walk(path []string, fn func(path []string, node *Folder)) {
	if f == nil {
		return
	}
	fn(path, f)
	if f.Group == nil {
		return
	}
	inner := append(path[:len(path):len(path)], f.Group.DisplayName)
	for _, child := range f.Group.Children {
		child.walk(inner, fn)
	}
}

// Infos returns listing information for every profile within f.
func (f *Folder) Infos() []Info {
	var out []Info
	f.Walk(func(path []string, node *Folder) {
		if node.Profile == nil {
			return
		}
		out = append(out, Info{
			Name:  node.Profile.DisplayName(),
			Mode:  node.Profile.Mode(),
			Group: path,
			Dir:   node.Profile.Dir(),
		})
	})
	return out
}
