package tx

// Mode selects how a transaction references its accounts.
type Mode int

const (
	// ModeDirect is a legacy transaction carrying every address in full.
	ModeDirect Mode = iota
	// ModeCompressed is a versioned transaction that references accounts
	// through a populated lookup table.
	ModeCompressed
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeCompressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// ChooseMode picks Direct when remainingLen remaining accounts fit under
// ceiling and Compressed otherwise.
func ChooseMode(remainingLen, ceiling int) Mode {
	if remainingLen <= ceiling {
		return ModeDirect
	}
	return ModeCompressed
}
