package results

import "fmt"

// ResultCode is the verdict of a command against one entity, a batch of
// entities or a status push.
type ResultCode string

const (
	CodeUnspecified     ResultCode = "Unspecified"
	CodeAdminDown       ResultCode = "AdminDown"
	CodeOutOfService    ResultCode = "OutOfService"
	CodeNoOperation     ResultCode = "NoOperation"
	CodeEnqueued        ResultCode = "Enqueued"
	CodeSuccess         ResultCode = "Success"
	CodePartial         ResultCode = "Partial" // aggregation only
	CodeArgumentError   ResultCode = "ArgumentError"
	CodeError           ResultCode = "Error"
	CodeFailed          ResultCode = "Failed"
	CodeTimeout         ResultCode = "Timeout"
	CodeLockTimeout     ResultCode = "LockTimeout"
	CodeCanNotBeRemoved ResultCode = "CanNotBeRemoved"
	CodeTrue            ResultCode = "True"
	CodeFalse           ResultCode = "False"
)

var knownCodes = map[ResultCode]struct{}{
	CodeUnspecified:     {},
	CodeAdminDown:       {},
	CodeOutOfService:    {},
	CodeNoOperation:     {},
	CodeEnqueued:        {},
	CodeSuccess:         {},
	CodePartial:         {},
	CodeArgumentError:   {},
	CodeError:           {},
	CodeFailed:          {},
	CodeTimeout:         {},
	CodeLockTimeout:     {},
	CodeCanNotBeRemoved: {},
	CodeTrue:            {},
	CodeFalse:           {},
}

// ParseResultCode converts the textual form of a result code.
func ParseResultCode(s string) (ResultCode, error) {
	code := ResultCode(s)
	if _, ok := knownCodes[code]; !ok {
		return CodeUnspecified, fmt.Errorf("unknown result code %q", s)
	}
	return code, nil
}

func (c ResultCode) String() string {
	if c == "" {
		return string(CodeUnspecified)
	}
	return string(c)
}

// IsSuccess reports whether the code means the command was accepted.
func (c ResultCode) IsSuccess() bool {
	switch c {
	case CodeSuccess, CodeEnqueued, CodeTrue:
		return true
	}
	return false
}

// IsRejection reports whether the code means the command was not carried out.
// Partial and Unspecified are neither a success nor a rejection.
func (c ResultCode) IsRejection() bool {
	switch c {
	case CodeAdminDown, CodeOutOfService, CodeNoOperation, CodeArgumentError,
		CodeError, CodeFailed, CodeTimeout, CodeLockTimeout, CodeCanNotBeRemoved, CodeFalse:
		return true
	}
	return false
}

func (c ResultCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ResultCode) UnmarshalText(text []byte) error {
	code, err := ParseResultCode(string(text))
	if err != nil {
		return err
	}
	*c = code
	return nil
}

// Command names the operation family a result belongs to.
type Command string

const (
	CommandAdd             Command = "Add"
	CommandAddIfNotExists  Command = "AddIfNotExists"
	CommandAddOrUpdate     Command = "AddOrUpdate"
	CommandUpdate          Command = "Update"
	CommandReplace         Command = "Replace"
	CommandDelete          Command = "Delete"
	CommandPushStatus      Command = "PushStatus"
	CommandPushAdminStatus Command = "PushAdminStatus"
)

func (c Command) String() string { return string(c) }

// AddedOrUpdated records which branch of an upsert was taken. It is only set
// on results of the AddOrUpdate command.
type AddedOrUpdated string

const (
	AddedOrUpdatedUnspecified AddedOrUpdated = ""
	AddedOrUpdatedNoOperation AddedOrUpdated = "NoOperation"
	AddedOrUpdatedEnqueued    AddedOrUpdated = "Enqueued"
	AddedOrUpdatedAdd         AddedOrUpdated = "Add"
	AddedOrUpdatedUpdate      AddedOrUpdated = "Update"
	AddedOrUpdatedFailed      AddedOrUpdated = "Failed"
)

// upsertTag maps a result code onto the tag an upsert result carries when the
// factory did not name the branch explicitly.
func upsertTag(code ResultCode) AddedOrUpdated {
	switch code {
	case CodeAdminDown, CodeOutOfService, CodeNoOperation:
		return AddedOrUpdatedNoOperation
	case CodeEnqueued:
		return AddedOrUpdatedEnqueued
	case CodeArgumentError, CodeError, CodeFailed, CodeTimeout, CodeLockTimeout, CodeCanNotBeRemoved:
		return AddedOrUpdatedFailed
	}
	return AddedOrUpdatedUnspecified
}
