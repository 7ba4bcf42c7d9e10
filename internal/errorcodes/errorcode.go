// Package errorcodes defines conversion errors using a structured type.
// ConvError holds a short code and a human-readable description.
package errorcodes

// Predefined conversion error instances.
var (
	Err00 = ConvError{"00", "No error"}
	ErrP1 = ConvError{"P1", "Plugin not found"}
	ErrP2 = ConvError{"P2", "Plugin cannot be disabled"}
	ErrP3 = ConvError{"P3", "Plugin is disabled"}
	ErrP4 = ConvError{"P4", "Plugin initialization failed"}
	ErrP5 = ConvError{"P5", "Plugin does not export a required function"}
	ErrP6 = ConvError{"P6", "Plugin execution failed"}
	ErrP7 = ConvError{"P7", "Plugin is not an external plugin"}
	ErrF1 = ConvError{"F1", "No input format plugin for format"}
	ErrF2 = ConvError{"F2", "No output format plugin for format"}
	ErrF3 = ConvError{"F3", "No metadata reader for file type"}
	ErrF4 = ConvError{"F4", "No metadata writer for file type"}
	ErrF5 = ConvError{"F5", "Unknown file type"}
	ErrC1 = ConvError{"C1", "Malformed container"}
	ErrC2 = ConvError{"C2", "Unsupported compression type"}
	ErrC3 = ConvError{"C3", "Missing package document"}
	ErrC4 = ConvError{"C4", "Encrypted content is not supported"}
	ErrL1 = ConvError{"L1", "Book not found in library"}
	ErrL2 = ConvError{"L2", "Format not found for book"}
	ErrS1 = ConvError{"S1", "Malformed request"}
	ErrS2 = ConvError{"S2", "Unknown command"}
)

// Aliases by meaning for the most common cases.
var (
	ErrPluginNotFound      = ErrP1
	ErrNotDisableable      = ErrP2
	ErrPluginDisabled      = ErrP3
	ErrNoInputPlugin       = ErrF1
	ErrNoOutputPlugin      = ErrF2
	ErrMalformedContainer  = ErrC1
	ErrUnsupportedCompress = ErrC2
	ErrBookNotFound        = ErrL1
	ErrMalformedRequest    = ErrS1
)

// ConvError represents a conversion error with its code and description.
type ConvError struct {
	Code        string // two-character error code
	Description string // human-readable description
}

// Error implements the Go error interface: "<Code>: <Description>".
func (e ConvError) Error() string {
	return e.Code + ": " + e.Description
}

// CodeOnly returns only the error code (e.g., "F1"), for embedding in server responses.
func (e ConvError) CodeOnly() string {
	return e.Code
}

var all = []ConvError{
	Err00, ErrP1, ErrP2, ErrP3, ErrP4, ErrP5, ErrP6, ErrP7,
	ErrF1, ErrF2, ErrF3, ErrF4, ErrF5,
	ErrC1, ErrC2, ErrC3, ErrC4,
	ErrL1, ErrL2, ErrS1, ErrS2,
}

// Lookup returns the error registered under code.
func Lookup(code string) (ConvError, bool) {
	for _, e := range all {
		if e.Code == code {
			return e, true
		}
	}

	return ConvError{}, false
}
