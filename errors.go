package autobib

import "fmt"

// ExitCode categorizes an error for the CLI boundary (spec §6/§7).
type ExitCode int

const (
	ExitSuccess       ExitCode = 0
	ExitUserError     ExitCode = 1
	ExitNetworkError  ExitCode = 2
	ExitDatabaseError ExitCode = 3
	ExitConfigError   ExitCode = 4
)

// InputError covers malformed identifiers and citation keys. Never fatal
// to a batch.
type InputError struct {
	Kind   string // UnknownProvider, BadSubId, EmptyAlias, AliasColon, AliasHash, BadRevision, BadCitationKey
	Detail string
}

func (e *InputError) Error() string {
	if e.Detail == "" {
		return e.Kind
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *InputError) ExitCode() ExitCode { return ExitUserError }

func newInputError(kind, detail string) *InputError {
	return &InputError{Kind: kind, Detail: detail}
}

// NetworkError wraps a transient provider-communication failure. The core
// never retries; retry policy belongs to a higher layer.
type NetworkError struct {
	Provider ProviderTag
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error (%s): %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error    { return e.Err }
func (e *NetworkError) ExitCode() ExitCode { return ExitNetworkError }

// DatabaseError wraps a fatal storage-engine failure: an underlying
// engine error or a detected invariant violation. It aborts the current
// command, and in a batch, the whole batch.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("database error: %v", e.Err)
	}
	return fmt.Sprintf("database error (%s): %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error    { return e.Err }
func (e *DatabaseError) ExitCode() ExitCode { return ExitDatabaseError }

func newDatabaseError(op string, err error) *DatabaseError {
	return &DatabaseError{Op: op, Err: err}
}

// ForeignDatabaseError indicates the opened file is not an autobib
// database (application_id mismatch).
type ForeignDatabaseError struct {
	Found uint32
}

func (e *ForeignDatabaseError) Error() string {
	return fmt.Sprintf("not an autobib database (application_id=0x%08X)", e.Found)
}
func (e *ForeignDatabaseError) ExitCode() ExitCode { return ExitDatabaseError }

// UnsupportedVersionError indicates the database's schema version is
// newer than this build understands.
type UnsupportedVersionError struct {
	Found, MaxSupported int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("database schema version %d is newer than the supported %d", e.Found, e.MaxSupported)
}
func (e *UnsupportedVersionError) ExitCode() ExitCode { return ExitDatabaseError }

// MalformedRecordError is returned by codec decoding on any violation of
// the wire format (spec §4.1).
type MalformedRecordError struct {
	Reason string
}

func (e *MalformedRecordError) Error() string { return "malformed record: " + e.Reason }
func (e *MalformedRecordError) ExitCode() ExitCode { return ExitDatabaseError }

func newMalformedRecordError(reason string) *MalformedRecordError {
	return &MalformedRecordError{Reason: reason}
}

// CodecError is a narrower encode-side failure (e.g. a field that cannot
// be represented in the wire format).
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string { return "codec error: " + e.Reason }
func (e *CodecError) ExitCode() ExitCode { return ExitDatabaseError }

// ConfigError is a fatal configuration-loading or validation failure.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Reason }
func (e *ConfigError) ExitCode() ExitCode { return ExitConfigError }

func newConfigError(reason string) *ConfigError {
	return &ConfigError{Reason: reason}
}

// AliasExistsError is returned when add_identifier targets a name that
// is already indexed.
type AliasExistsError struct {
	Name string
}

func (e *AliasExistsError) Error() string { return fmt.Sprintf("identifier already exists: %q", e.Name) }
func (e *AliasExistsError) ExitCode() ExitCode { return ExitUserError }

// CacheMiss is returned by the test-only response cache in replay mode
// when a request has no recorded response. Not part of the CLI exit-code
// taxonomy: it is a test-harness failure, never produced in production
// use.
type CacheMiss struct {
	Key string
}

func (e *CacheMiss) Error() string { return "response cache miss: " + e.Key }
