package domain

type ThreatType string

const (
	ThreatTypeTestVirus     ThreatType = "TEST_VIRUS_SIGNATURE"
	ThreatTypeEICAR         ThreatType = "EICAR_TEST_FILE"
	ThreatTypeSQLInjection  ThreatType = "SQL_INJECTION"
	ThreatTypeXSS           ThreatType = "XSS_ATTACK"
	ThreatTypeReverseShell  ThreatType = "REVERSE_SHELL"
	ThreatTypeAnomalousSize ThreatType = "Anomalous Size (Buffer Overflow Attempt)"
	ThreatTypeNone          ThreatType = "None"
)

type Action string

const (
	ActionAllow         Action = "ALLOW"
	ActionDrop          Action = "DROP"
	ActionBlockAndAlert Action = "BLOCK_AND_ALERT"
)

// Verdict is the pipeline output for one record. Build it with AllowVerdict,
// DropVerdict or BlockVerdict so ThreatDetected always agrees with Action.
type Verdict struct {
	SourceAddress  string     `json:"source_ip"`
	ThreatDetected bool       `json:"threat_detected"`
	ThreatType     ThreatType `json:"threat_type"`
	Action         Action     `json:"action"`
}

func AllowVerdict(sourceAddress string) Verdict {
	return Verdict{
		SourceAddress:  sourceAddress,
		ThreatDetected: false,
		ThreatType:     ThreatTypeNone,
		Action:         ActionAllow,
	}
}

// DropVerdict is produced only by the size guard.
func DropVerdict(sourceAddress string, reason ThreatType) Verdict {
	return Verdict{
		SourceAddress:  sourceAddress,
		ThreatDetected: true,
		ThreatType:     reason,
		Action:         ActionDrop,
	}
}

// BlockVerdict is produced only by a signature match.
func BlockVerdict(sourceAddress string, signature ThreatType) Verdict {
	return Verdict{
		SourceAddress:  sourceAddress,
		ThreatDetected: true,
		ThreatType:     signature,
		Action:         ActionBlockAndAlert,
	}
}

// AlertLevel maps the action to the severity used for alerts and logs.
func (v Verdict) AlertLevel() AlertLevel {
	switch v.Action {
	case ActionBlockAndAlert:
		return AlertLevelCritical
	case ActionDrop:
		return AlertLevelWarning
	default:
		return AlertLevelInfo
	}
}

// GuardResult is the outcome of the size guard: pass, or reject with a reason.
type GuardResult struct {
	Rejected bool
	Reason   ThreatType
}

func GuardPass() GuardResult {
	return GuardResult{}
}

func GuardReject(reason ThreatType) GuardResult {
	return GuardResult{Rejected: true, Reason: reason}
}

// ScanResult is the outcome of the signature scanner.
type ScanResult struct {
	Matched   bool
	Signature ThreatType
}

func ScanClean() ScanResult {
	return ScanResult{}
}

func ScanMatched(signature ThreatType) ScanResult {
	return ScanResult{Matched: true, Signature: signature}
}
