package register

import (
	"github.com/gagliardetto/solana-go"

	"github.com/matrixkit/matrixkit-go/matrix"
	"github.com/matrixkit/matrixkit-go/tx"
)

// Stage is a state of the registration state machine.
type Stage int

const (
	StageInit Stage = iota
	StageCheckUserNotRegistered
	StageCheckBalance
	StageCheckReferrerRegistered
	StageDetermineSlot
	StageResolveUplines
	StageBuildRemainingAccounts
	StageChooseMode
	StagePrepareLookupTable
	StageAssembleAndSubmit
	StageConfirmAndVerify
	StageDone
	StageAborted
)

var stageNames = [...]string{
	StageInit:                    "Init",
	StageCheckUserNotRegistered:  "CheckUserNotRegistered",
	StageCheckBalance:            "CheckBalance",
	StageCheckReferrerRegistered: "CheckReferrerRegistered",
	StageDetermineSlot:           "DetermineSlot",
	StageResolveUplines:          "ResolveUplines",
	StageBuildRemainingAccounts:  "BuildRemainingAccounts",
	StageChooseMode:              "ChooseMode",
	StagePrepareLookupTable:      "PrepareLookupTable",
	StageAssembleAndSubmit:       "AssembleAndSubmit",
	StageConfirmAndVerify:        "ConfirmAndVerify",
	StageDone:                    "Done",
	StageAborted:                 "Aborted",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s]
}

// Result describes how far a registration got and what it produced.
type Result struct {
	// Stage is StageDone on success and StageAborted otherwise.
	Stage Stage
	// FailedStage is the stage that aborted, when Stage is StageAborted.
	FailedStage Stage
	Category    Category

	Payer          solana.PublicKey
	User           solana.PublicKey
	ReferrerWallet solana.PublicKey
	Referrer       solana.PublicKey

	// Slot is the referrer slot (1..3) this registration fills.
	Slot              int
	Uplines           int
	RemainingAccounts int
	Mode              tx.Mode
	LookupTable       solana.PublicKey
	Signature         solana.Signature

	// Record is the user account read back after confirmation.
	Record *matrix.UserRecord
}
