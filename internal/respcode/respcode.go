// Package respcode provides response-code narration, severity, and category
// lookups for both the POS-facing numeric table and the bank's numeric +
// alpha table.
package respcode

// Severity classifies how serious a response code is.
type Severity string

// Category groups a response code by the kind of failure it names.
type Category string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"

	CategorySuccess       Category = "SUCCESS"
	CategorySystemError   Category = "SYSTEM_ERROR"
	CategoryCardError     Category = "CARD_ERROR"
	CategoryPinError      Category = "PIN_ERROR"
	CategoryAccountError  Category = "ACCOUNT_ERROR"
	CategorySecurityError Category = "SECURITY_ERROR"
	CategoryBusinessError Category = "BUSINESS_ERROR"
	CategoryUnknown       Category = "UNKNOWN"
)

// Entry is one response-code table row.
type Entry struct {
	Code               string
	Description        string
	Severity           Severity
	Category           Category
	RecommendedAction  string
}

var successCodes = map[string]bool{"00": true, "10": true, "11": true}

var systemErrorCodes = map[string]bool{
	"06": true, "28": true, "45": true, "72": true, "73": true, "74": true,
	"90": true, "91": true, "92": true, "93": true, "94": true, "95": true,
	"96": true, "97": true, "98": true, "99": true,
}

var pinErrorCodes = map[string]bool{
	"55": true, "62": true, "67": true, "72": true, "75": true, "81": true, "83": true,
}

var securityErrorCodes = map[string]bool{
	"59": true, "63": true, "75": true, "78": true, "80": true, "81": true,
	"82": true, "83": true, "84": true, "85": true,
}

// posDescriptions carries the narration for the POS_CODES in the 00..99
// range that have one; POSCode reports any code missing here as
// unrecognized.
var posDescriptions = map[string]string{
	"00": "APPROVED",
	"01": "Refer to card issuer",
	"03": "Invalid merchant",
	"04": "Pick up card",
	"05": "Do not honor",
	"06": "Error",
	"07": "Pick up card, special condition",
	"08": "Honor with identification",
	"10": "Approved for partial amount",
	"11": "Approved (VIP)",
	"12": "Invalid transaction",
	"13": "Invalid amount",
	"14": "Invalid account number (no such number)",
	"15": "No such issuer",
	"19": "Re-enter transaction",
	"21": "No action taken",
	"25": "Unable to locate record in file",
	"28": "File update not supported by receiver",
	"30": "Format error",
	"41": "Lost card",
	"43": "Stolen card",
	"45": "No wallet",
	"51": "Insufficient funds",
	"52": "No checking account",
	"53": "No savings account",
	"54": "Expired card",
	"55": "Incorrect PIN",
	"57": "Transaction not permitted to cardholder",
	"58": "Transaction not permitted to terminal",
	"59": "Suspected fraud",
	"61": "Activity amount limit exceeded",
	"62": "Restricted card",
	"63": "Security violation",
	"65": "Activity count limit exceeded",
	"67": "Hard capture",
	"72": "Destination cannot be found for routing",
	"73": "Duplicate transmission detected",
	"74": "Timeout at issuer or switch",
	"75": "Allowable number of PIN tries exceeded",
	"78": "No account of type requested",
	"80": "Visa transactions: Invalid date",
	"81": "Cryptographic error found in PIN",
	"82": "Negative CAM, dCVV, iCVV, or CVV results",
	"83": "Cannot verify PIN",
	"84": "Invalid authorization life cycle",
	"85": "No reason to decline",
	"90": "Cutoff is in process",
	"91": "Issuer unavailable or switch inoperative",
	"92": "Destination cannot be found for routing",
	"93": "Transaction cannot be completed, violation of law",
	"94": "Duplicate transmission",
	"95": "Reconcile error",
	"96": "System malfunction",
	"97": "Reserved for national use",
	"98": "Reserved for national use",
	"99": "FATAL ERROR",
}

// bankAlphaDescriptions holds the alphanumeric codes carried by the bank
// dialect's response-code table.
var bankAlphaDescriptions = map[string]string{
	"B1": "Surcharge amount not permitted on Visa cards",
	"N0": "Force STIP",
	"N3": "Cash service not available",
	"N4": "Cashback request exceeds issuer limit",
	"N7": "Decline for CVV2 failure",
	"P2": "Invalid biller information",
	"P5": "PIN change/unblock request declined",
	"P6": "Unsafe PIN",
	"Q1": "Card authentication failed",
	"R0": "Stop payment order",
	"R1": "Revocation of authorization order",
	"R3": "Revocation of all authorizations order",
	"XA": "Forward to issuer",
	"XD": "Forward to issuer",
	"Z3": "Unable to go online, decline",
}

func classify(code string) (Category, Severity) {
	switch {
	case successCodes[code]:
		return CategorySuccess, SeverityInfo
	case pinErrorCodes[code]:
		return CategoryPinError, SeverityError
	case securityErrorCodes[code]:
		return CategorySecurityError, SeverityError
	case systemErrorCodes[code]:
		return CategorySystemError, SeverityError
	case code == "14" || code == "41" || code == "43" || code == "54":
		return CategoryCardError, SeverityWarn
	case code == "51" || code == "52" || code == "53" || code == "78":
		return CategoryAccountError, SeverityWarn
	case code == "61" || code == "65" || code == "12":
		return CategoryBusinessError, SeverityWarn
	default:
		return CategoryUnknown, SeverityWarn
	}
}

func recommendedAction(cat Category) string {
	switch cat {
	case CategorySuccess:
		return "none"
	case CategoryCardError:
		return "retain card per issuer instructions"
	case CategoryPinError:
		return "prompt cardholder to re-enter PIN"
	case CategoryAccountError:
		return "advise cardholder to contact issuer"
	case CategorySecurityError:
		return "escalate to fraud/security desk"
	case CategoryBusinessError:
		return "review transaction limits"
	case CategorySystemError:
		return "retry after backoff; escalate if persistent"
	default:
		return "review manually"
	}
}

// POSCode looks up a numeric POS response code.
func POSCode(code string) Entry {
	cat, sev := classify(code)
	desc, ok := posDescriptions[code]
	if !ok {
		desc = "Unrecognized response code"
		cat, sev = CategoryUnknown, SeverityWarn
	}

	return Entry{Code: code, Description: desc, Severity: sev, Category: cat, RecommendedAction: recommendedAction(cat)}
}

// BankCode looks up a bank response code, numeric or alpha.
func BankCode(code string) Entry {
	if desc, ok := bankAlphaDescriptions[code]; ok {
		return Entry{Code: code, Description: desc, Severity: SeverityWarn, Category: CategoryBusinessError, RecommendedAction: recommendedAction(CategoryBusinessError)}
	}

	return POSCode(code)
}
