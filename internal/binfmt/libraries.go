package binfmt

// Libraries returns the DT_NEEDED entries.
func (e *ELF) Libraries() []string {
	return e.Needed
}

// Libraries returns the distinct import DLL names in first-seen order.
func (p *PE) Libraries() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, imp := range p.Imports {
		if _, ok := seen[imp.DLL]; ok {
			continue
		}
		seen[imp.DLL] = struct{}{}
		out = append(out, imp.DLL)
	}
	return out
}

// Libraries returns the dependent dylibs in load command order.
func (m *MachO) Libraries() []string {
	return m.Dylibs
}
