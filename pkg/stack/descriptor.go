package stack

// Descriptor describes the shape of an activation. Implementations must be
// comparable (usually a pointer); descriptors are interned by identity.
type Descriptor interface {
	// NumParameters is the declared parameter count. Calls with fewer
	// arguments get the rest padded with the default value.
	NumParameters() int

	// NumLocals is the number of local slots the activation needs.
	NumLocals() int
}

// sentinelDescriptor marks the descriptor word of an entry sentinel.
const sentinelDescriptor = ^uint64(0)

// frameShape returns the number of argument slots and locals for a call.
func frameShape(d Descriptor, argc int) (padded, numLocals int) {
	if d == nil {
		return argc, 0
	}
	return max(argc, d.NumParameters()), d.NumLocals()
}

func (s *Stack) descriptorID(d Descriptor) uint64 {
	if d == nil {
		return 0
	}
	if id, ok := s.descriptorIDs[d]; ok {
		return id
	}
	s.descriptors = append(s.descriptors, d)
	id := uint64(len(s.descriptors))
	s.descriptorIDs[d] = id
	return id
}

func (s *Stack) descriptorAt(fp int) Descriptor {
	id := s.load(fp + hdrDescriptor)
	if id == 0 || id == sentinelDescriptor {
		return nil
	}
	return s.descriptors[id-1]
}
