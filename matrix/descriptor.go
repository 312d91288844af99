package matrix

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Account sources understood by the instruction builders. A source names
// where the address of a fixed account comes from.
const (
	SourcePayer             = "payer"
	SourceState             = "state"
	SourceReferrer          = "referrer"
	SourceReferrerWallet    = "referrer_wallet"
	SourceUser              = "user"
	SourceTokenMint         = "token_mint"
	SourcePayerTokenAccount = "payer_token_account"

	// SourceAddressPrefix selects a named entry of the configured protocol
	// addresses, e.g. "addr:program_token_vault".
	SourceAddressPrefix = "addr:"

	// SourceProgramPrefix selects a well-known program or sysvar, e.g.
	// "program:system".
	SourceProgramPrefix = "program:"
)

var knownPrograms = map[string]bool{
	"system":           true,
	"token":            true,
	"associated_token": true,
	"rent":             true,
}

// AccountSpec describes one named fixed account of an instruction.
type AccountSpec struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Writable bool   `json:"writable"`
	Signer   bool   `json:"signer"`
}

// Descriptor is the versioned interface contract of one deployment of the
// matrix program. It fixes account order, the remaining-accounts prefix and
// the slot rule, so a program upgrade means a new descriptor rather than new
// code.
type Descriptor struct {
	Version             string `json:"version"`
	UserSeed            string `json:"user_seed"`
	UserAccountName     string `json:"user_account_name"`
	StateAccountName    string `json:"state_account_name"`
	RegisterInstruction string `json:"register_instruction"`
	ClaimInstruction    string `json:"claim_instruction"`

	// UplineSlotThreshold is the filled-slot count at which the next
	// registration closes the referrer's matrix and must carry its uplines.
	// It is always SlotCount-1; files must state it explicitly.
	UplineSlotThreshold uint8 `json:"upline_slot_threshold"`

	// ReverseUplines emits the stored ancestor list newest first.
	ReverseUplines bool `json:"reverse_uplines"`

	RegisterAccounts []AccountSpec `json:"register_accounts"`

	// ClaimAccounts may not name referrer sources. Empty means the version
	// offers no claim.
	ClaimAccounts []AccountSpec `json:"claim_accounts,omitempty"`

	// RemainingPrefix lists protocol address keys sent read-only ahead of
	// the upline groups.
	RemainingPrefix []string `json:"remaining_prefix"`

	// DirectAccountCeiling is the largest remaining-accounts count that
	// still fits a legacy transaction.
	DirectAccountCeiling int `json:"direct_account_ceiling"`

	MaxUplineDepth int `json:"max_upline_depth"`
}

func commonRegisterAccounts() []AccountSpec {
	return []AccountSpec{
		{Name: "state", Source: SourceState, Writable: true},
		{Name: "user_wallet", Source: SourcePayer, Writable: true, Signer: true},
		{Name: "referrer", Source: SourceReferrer, Writable: true},
		{Name: "referrer_wallet", Source: SourceReferrerWallet, Writable: true},
		{Name: "user", Source: SourceUser, Writable: true},
		{Name: "token_mint", Source: SourceTokenMint, Writable: true},
		{Name: "user_token_account", Source: SourcePayerTokenAccount, Writable: true},
		{Name: "program_token_vault", Source: SourceAddressPrefix + "program_token_vault", Writable: true},
		{Name: "token_program", Source: SourceProgramPrefix + "token"},
		{Name: "associated_token_program", Source: SourceProgramPrefix + "associated_token"},
		{Name: "system_program", Source: SourceProgramPrefix + "system"},
		{Name: "rent", Source: SourceProgramPrefix + "rent"},
	}
}

func commonClaimAccounts() []AccountSpec {
	return []AccountSpec{
		{Name: "state", Source: SourceState, Writable: true},
		{Name: "user_wallet", Source: SourcePayer, Writable: true, Signer: true},
		{Name: "user", Source: SourceUser, Writable: true},
		{Name: "token_mint", Source: SourceTokenMint},
		{Name: "user_token_account", Source: SourcePayerTokenAccount, Writable: true},
		{Name: "program_token_vault", Source: SourceAddressPrefix + "program_token_vault", Writable: true},
		{Name: "token_program", Source: SourceProgramPrefix + "token"},
		{Name: "associated_token_program", Source: SourceProgramPrefix + "associated_token"},
		{Name: "system_program", Source: SourceProgramPrefix + "system"},
	}
}

// builtins holds the descriptors of the known program versions.
var builtins = map[string]Descriptor{
	"v1": {
		Version:             "v1",
		UserSeed:            "user_account",
		UserAccountName:     "UserAccount",
		StateAccountName:    "ProgramState",
		RegisterInstruction: "register_with_sol_deposit",
		ClaimInstruction:    "claim",
		UplineSlotThreshold: 2,
		ReverseUplines:      true,
		RegisterAccounts:    commonRegisterAccounts(),
		ClaimAccounts:       commonClaimAccounts(),
		RemainingPrefix: []string{
			"pool",
			"b_vault",
			"b_token_vault",
			"b_vault_lp_mint",
			"price_feed",
		},
		DirectAccountCeiling: 14,
		MaxUplineDepth:       15,
	},
	"v2": {
		Version:             "v2",
		UserSeed:            "user_account",
		UserAccountName:     "UserAccount",
		StateAccountName:    "ProgramState",
		RegisterInstruction: "register_with_sol_deposit",
		ClaimInstruction:    "claim_rewards",
		UplineSlotThreshold: 2,
		ReverseUplines:      true,
		RegisterAccounts:    commonRegisterAccounts(),
		ClaimAccounts:       commonClaimAccounts(),
		RemainingPrefix: []string{
			"pool",
			"a_vault",
			"a_vault_lp",
			"b_vault_lp",
			"b_vault_lp_mint",
			"price_feed",
			"price_feed_program",
		},
		DirectAccountCeiling: 13,
		MaxUplineDepth:       14,
	},
}

// Builtin returns a copy of the built-in descriptor for version.
func Builtin(version string) (*Descriptor, error) {
	d, ok := builtins[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, version)
	}
	d.RegisterAccounts = append([]AccountSpec(nil), d.RegisterAccounts...)
	d.ClaimAccounts = append([]AccountSpec(nil), d.ClaimAccounts...)
	d.RemainingPrefix = append([]string(nil), d.RemainingPrefix...)
	return &d, nil
}

// LoadDescriptor reads a JSON descriptor from path and validates it.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrInvalidDescriptor, path)
		}
		return nil, fmt.Errorf("matrix: read descriptor: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the descriptor for internal consistency and returns the
// first problem found.
func (d *Descriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: descriptor", ErrNilParam)
	}
	for field, v := range map[string]string{
		"version":              d.Version,
		"user_seed":            d.UserSeed,
		"user_account_name":    d.UserAccountName,
		"state_account_name":   d.StateAccountName,
		"register_instruction": d.RegisterInstruction,
		"claim_instruction":    d.ClaimInstruction,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidDescriptor, field)
		}
	}
	// Only the registration that fills the last slot carries uplines.
	if d.UplineSlotThreshold != SlotCount-1 {
		return fmt.Errorf("%w: upline slot threshold must be %d, got %d", ErrInvalidDescriptor, SlotCount-1, d.UplineSlotThreshold)
	}
	if len(d.RegisterAccounts) == 0 {
		return fmt.Errorf("%w: no register accounts", ErrInvalidDescriptor)
	}
	if err := validateAccounts("register", d.RegisterAccounts, true); err != nil {
		return err
	}
	if len(d.ClaimAccounts) > 0 {
		if err := validateAccounts("claim", d.ClaimAccounts, false); err != nil {
			return err
		}
	}

	for i, key := range d.RemainingPrefix {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: remaining prefix entry %d is empty", ErrInvalidDescriptor, i)
		}
	}
	if d.DirectAccountCeiling < len(d.RemainingPrefix) {
		return fmt.Errorf("%w: direct account ceiling %d is below prefix length %d",
			ErrInvalidDescriptor, d.DirectAccountCeiling, len(d.RemainingPrefix))
	}
	if d.MaxUplineDepth < 1 {
		return fmt.Errorf("%w: max upline depth must be positive, got %d", ErrInvalidDescriptor, d.MaxUplineDepth)
	}
	return nil
}

func validateAccounts(kind string, accounts []AccountSpec, allowReferrer bool) error {
	seen := make(map[string]bool, len(accounts))
	signers := 0
	for i, acct := range accounts {
		if acct.Name == "" {
			return fmt.Errorf("%w: %s account %d has no name", ErrInvalidDescriptor, kind, i)
		}
		if seen[acct.Name] {
			return fmt.Errorf("%w: %s account %q listed twice", ErrInvalidDescriptor, kind, acct.Name)
		}
		seen[acct.Name] = true
		if err := validateSource(acct.Source); err != nil {
			return fmt.Errorf("%w: %s account %q: %w", ErrInvalidDescriptor, kind, acct.Name, err)
		}
		if !allowReferrer && (acct.Source == SourceReferrer || acct.Source == SourceReferrerWallet) {
			return fmt.Errorf("%w: %s account %q cannot use a referrer source", ErrInvalidDescriptor, kind, acct.Name)
		}
		if acct.Signer {
			if acct.Source != SourcePayer {
				return fmt.Errorf("%w: %s account %q: only the payer may sign", ErrInvalidDescriptor, kind, acct.Name)
			}
			signers++
		}
	}
	if signers != 1 {
		return fmt.Errorf("%w: %s expects exactly one signer, got %d", ErrInvalidDescriptor, kind, signers)
	}
	return nil
}

func validateSource(src string) error {
	switch src {
	case SourcePayer, SourceState, SourceReferrer, SourceReferrerWallet,
		SourceUser, SourceTokenMint, SourcePayerTokenAccount:
		return nil
	}
	if name, ok := strings.CutPrefix(src, SourceAddressPrefix); ok {
		if name == "" {
			return errors.New("empty address key")
		}
		return nil
	}
	if name, ok := strings.CutPrefix(src, SourceProgramPrefix); ok {
		if !knownPrograms[name] {
			return fmt.Errorf("unknown program %q", name)
		}
		return nil
	}
	return fmt.Errorf("unknown source %q", src)
}

// RequiredAddresses returns the protocol address keys the descriptor needs
// from configuration, in first-use order.
func (d *Descriptor) RequiredAddresses() []string {
	var keys []string
	seen := make(map[string]bool)
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, acct := range append(append([]AccountSpec(nil), d.RegisterAccounts...), d.ClaimAccounts...) {
		if name, ok := strings.CutPrefix(acct.Source, SourceAddressPrefix); ok {
			add(name)
		}
	}
	for _, k := range d.RemainingPrefix {
		add(k)
	}
	return keys
}
