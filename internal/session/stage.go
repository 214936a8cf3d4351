package session

import "fmt"

// Stage is the step of the intake conversation a session is waiting on.
type Stage uint8

const (
	StageMenu Stage = iota
	StageAwaitName
	StageAwaitEmail
	StageAwaitDescription
	StageAwaitDate
	StageAwaitLocation
	StageAwaitInvolved
	StageAwaitWitnesses
	StageAwaitEvidence
	StageAwaitRecurrence
	StageAwaitSeverity
	StageClassifyOverride
	StageConfirm
	StageEditField
	StageLookupProtocol
	StageLookupCredential

	stageCount
)

var stageNames = [stageCount]string{
	StageMenu:             "MENU",
	StageAwaitName:        "AWAIT_NAME",
	StageAwaitEmail:       "AWAIT_EMAIL",
	StageAwaitDescription: "AWAIT_DESCRIPTION",
	StageAwaitDate:        "AWAIT_DATE",
	StageAwaitLocation:    "AWAIT_LOCATION",
	StageAwaitInvolved:    "AWAIT_INVOLVED",
	StageAwaitWitnesses:   "AWAIT_WITNESSES",
	StageAwaitEvidence:    "AWAIT_EVIDENCE",
	StageAwaitRecurrence:  "AWAIT_RECURRENCE",
	StageAwaitSeverity:    "AWAIT_SEVERITY",
	StageClassifyOverride: "CLASSIFY_OVERRIDE",
	StageConfirm:          "CONFIRM",
	StageEditField:        "EDIT_FIELD",
	StageLookupProtocol:   "LOOKUP_PROTOCOL",
	StageLookupCredential: "LOOKUP_CREDENTIAL",
}

// Stages returns every stage in declaration order.
func Stages() []Stage {
	out := make([]Stage, 0, stageCount)
	for s := Stage(0); s < stageCount; s++ {
		out = append(out, s)
	}
	return out
}

func (s Stage) Valid() bool { return s < stageCount }

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", uint8(s))
	}
	return []byte(stageNames[s]), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	name := string(text)
	for i, n := range stageNames {
		if n == name {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", name)
}
