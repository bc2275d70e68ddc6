package permission

// Mask64 is a set of permissions packed one bit each.
type Mask64 uint64

// MaskOf builds a mask holding perms. Invalid permissions are ignored.
func MaskOf(perms ...Permission) Mask64 {
	var m Mask64
	for _, p := range perms {
		m.Set(p)
	}
	return m
}

// Has reports whether p is in the mask.
func (m Mask64) Has(p Permission) bool {
	if !p.Valid() {
		return false
	}
	return m&(1<<uint(p)) != 0
}

// HasAll reports whether every perm is in the mask. An empty list is true.
func (m Mask64) HasAll(perms ...Permission) bool {
	for _, p := range perms {
		if !m.Has(p) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one perm is in the mask.
func (m Mask64) HasAny(perms ...Permission) bool {
	for _, p := range perms {
		if m.Has(p) {
			return true
		}
	}
	return false
}

func (m *Mask64) Set(p Permission) {
	if !p.Valid() {
		return
	}
	*m |= 1 << uint(p)
}

func (m *Mask64) Clear(p Permission) {
	if !p.Valid() {
		return
	}
	*m &^= 1 << uint(p)
}

// List expands the mask in declaration order.
func (m Mask64) List() []Permission {
	var out []Permission
	for _, p := range All() {
		if m.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}
