package escalate

// Strategy identifies one step of the escalation chain, ordered from the
// fully instrumented attempt down to running the command untouched.
type Strategy int

const (
	InstrumentedSpawn Strategy = iota
	BlindAffirmativeStream
	PreSeededInput
	RawExecution
)

func (s Strategy) String() string {
	switch s {
	case InstrumentedSpawn:
		return "instrumented_spawn"
	case BlindAffirmativeStream:
		return "blind_affirmative_stream"
	case PreSeededInput:
		return "pre_seeded_input"
	case RawExecution:
		return "raw_execution"
	default:
		return "unknown"
	}
}

// Order is the fixed escalation sequence. Advancing past RawExecution
// means the whole invocation failed.
func Order() []Strategy {
	return []Strategy{InstrumentedSpawn, BlindAffirmativeStream, PreSeededInput, RawExecution}
}
