package errors

// Code ranges for tcplb, following the teacher's per-package offset
// convention (each subsystem owns a contiguous block so codes never
// collide when errors are chained across package boundaries).
const (
	ConfigUnreadable CodeError = iota + 1100
	ConfigMissingSection
	ConfigInvalidMapping
	ConfigValidation
)

const (
	ListenerBindFailed CodeError = iota + 1200
	ListenerAcceptFailed
)

const (
	WorkerDialFailed CodeError = 1300
)

const (
	RelayFailed CodeError = 1400
)

func init() {
	RegisterIdFctMessage(ConfigUnreadable, func(code CodeError) string {
		switch code {
		case ConfigUnreadable:
			return "configuration file could not be read"
		case ConfigMissingSection:
			return "configuration is missing a required section"
		case ConfigInvalidMapping:
			return "configuration mapping is invalid"
		case ConfigValidation:
			return "configuration failed validation"
		default:
			return UnknownMessage
		}
	})

	RegisterIdFctMessage(ListenerBindFailed, func(code CodeError) string {
		switch code {
		case ListenerBindFailed:
			return "listener could not bind to its configured address"
		case ListenerAcceptFailed:
			return "listener failed while accepting a connection"
		default:
			return UnknownMessage
		}
	})

	RegisterIdFctMessage(WorkerDialFailed, func(code CodeError) string {
		return "connection to worker could not be established"
	})

	RegisterIdFctMessage(RelayFailed, func(code CodeError) string {
		return "relay between client and worker connection failed"
	})
}
