package asset

import "fmt"

// State is the lifecycle state of an asset instance. Exactly one is active at a time.
type State int

const (
	StateNeedInstantiation State = iota
	StatePreInstantiation
	StateInstantiating
	StatePreCook
	StateCooking
	StatePostCook
	StatePreProcess
	StateProcessing
	StateNone
	StateNeedRebuild
	StateNeedDelete
	StateDeleting
	// StateProcessTemplate is used by template instances that never cook.
	StateProcessTemplate
)

var stateNames = map[State]string{
	StateNeedInstantiation: "need_instantiation",
	StatePreInstantiation:  "pre_instantiation",
	StateInstantiating:     "instantiating",
	StatePreCook:           "pre_cook",
	StateCooking:           "cooking",
	StatePostCook:          "post_cook",
	StatePreProcess:        "pre_process",
	StateProcessing:        "processing",
	StateNone:              "none",
	StateNeedRebuild:       "need_rebuild",
	StateNeedDelete:        "need_delete",
	StateDeleting:          "deleting",
	StateProcessTemplate:   "process_template",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsCooking reports whether the state lies in [PreCook, PostCook]. Property edits on
// the host side are gated on this.
func (s State) IsCooking() bool {
	return s >= StatePreCook && s <= StatePostCook
}

// Result is the outcome attached to the current state.
type Result int

const (
	ResultNone Result = iota
	ResultWorking
	ResultSuccess
	ResultFinishedWithError
	ResultFinishedWithFatalError
	ResultAborted
)

var resultNames = map[Result]string{
	ResultNone:                   "none",
	ResultWorking:                "working",
	ResultSuccess:                "success",
	ResultFinishedWithError:      "finished_with_error",
	ResultFinishedWithFatalError: "finished_with_fatal_error",
	ResultAborted:                "aborted",
}

// String returns the result name. The names match the cook history result column.
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", int(r))
}

var transitions = map[State][]State{
	StateNeedInstantiation: {StatePreInstantiation, StateInstantiating},
	StatePreInstantiation:  {StateInstantiating, StateNeedInstantiation},
	StateInstantiating:     {StatePreCook, StateNeedInstantiation},
	StatePreCook:           {StateCooking, StateNone, StateNeedInstantiation},
	StateCooking:           {StatePostCook, StateNone, StateNeedInstantiation},
	StatePostCook:          {StatePreProcess},
	StatePreProcess:        {StateProcessing},
	StateProcessing:        {StateNone},
	StateNone:              {StatePreCook, StateNeedInstantiation},
	StateNeedRebuild:       {StatePreInstantiation},
	StateNeedDelete:        {StateDeleting},
}

// CanTransition reports whether the machine may move from one state to another.
// Rebuild and delete requests are accepted from any state except Deleting; a template
// instance can only be deleted.
func CanTransition(from, to State) bool {
	switch from {
	case StateDeleting:
		return false
	case StateProcessTemplate:
		return to == StateNeedDelete
	}
	if to == StateNeedRebuild || to == StateNeedDelete {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
