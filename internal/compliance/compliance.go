// Package compliance scores a contract interface against known
// real-world-asset token standards.
package compliance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pendergraft/contraforge/internal/chains"
)

// Standards reported for compliant contracts
const (
	StandardERC3643   = "ERC-3643"
	StandardERC1400   = "ERC-1400"
	StandardCustomRWA = "Custom RWA"
)

// Detected feature labels
const (
	FeatureERC3643  = "ERC-3643 Standard Detected"
	FeatureERC1400  = "ERC-1400 Standard Detected"
	FeatureOracle   = "Oracle/NAV Integration"
	FeatureControls = "Compliance Controls (Pause/Freeze)"

	keywordFeaturePrefix = "RWA Keywords: "
)

// Weights are in hundredths so sums are exact
const (
	standardWeight   = 60
	keywordWeight    = 10
	maxKeywordWeight = 40
	oracleWeight     = 10
	controlWeight    = 10
	maxScore         = 99
	compliantScore   = 30

	standardThreshold = 3
	controlThreshold  = 2
)

var (
	erc3643Functions = newSet("identityRegistry", "compliance", "isVerified", "setIdentityRegistry",
		"batchFreeze", "batchUnfreeze", "forceTransfer", "recoverTokens")
	erc1400Functions = newSet("getDocument", "setDocument", "issueByPartition", "redeemByPartition",
		"canTransferByPartition", "isIssuable", "isControllable")
	oracleFunctions  = newSet("getLatestPrice", "latestRoundData", "getTimestamp", "updateNAV")
	controlFunctions = newSet("pause", "unpause", "freeze", "blacklist", "whitelist")

	// Checked in order; the first keyword contained in a name wins
	rwaKeywords = []string{"asset", "custodian", "redeem", "redemption", "isin", "cusip",
		"nav", "valuation", "maturity", "issuance", "tranche", "documenturi"}
)

// Report is the outcome of scoring an ABI
type Report struct {
	Compliant        bool     `json:"compliant"`
	Confidence       float64  `json:"confidence"`
	DetectedFeatures []string `json:"detectedFeatures"`
	Standard         string   `json:"standard,omitempty"`
}

// Score inspects function and event entries of an ABI.
// Matches are counted per entry, so overloads count more than once.
func Score(abi []chains.ABIEntry) Report {
	features := []string{}
	score := 0

	erc3643 := countFunctions(abi, erc3643Functions)
	if erc3643 >= standardThreshold {
		features = append(features, FeatureERC3643)
		score += standardWeight
	}

	erc1400 := countFunctions(abi, erc1400Functions)
	if erc1400 >= standardThreshold {
		features = append(features, FeatureERC1400)
		score += standardWeight
	}

	if keywords := matchedKeywords(abi); len(keywords) > 0 {
		features = append(features, keywordFeaturePrefix+strings.Join(keywords, ", "))
		score += min(maxKeywordWeight, keywordWeight*len(keywords))
	}

	if countFunctions(abi, oracleFunctions) > 0 {
		features = append(features, FeatureOracle)
		score += oracleWeight
	}

	if countFunctions(abi, controlFunctions) >= controlThreshold {
		features = append(features, FeatureControls)
		score += controlWeight
	}

	report := Report{
		Compliant:        score >= compliantScore,
		Confidence:       float64(min(score, maxScore)) / 100,
		DetectedFeatures: features,
	}
	if report.Compliant {
		switch {
		case erc3643 >= standardThreshold:
			report.Standard = StandardERC3643
		case erc1400 >= standardThreshold:
			report.Standard = StandardERC1400
		default:
			report.Standard = StandardCustomRWA
		}
	}
	return report
}

// ScoreJSON scores a JSON ABI array or a compiler artifact with an "abi" field.
// Input that is not an ABI scores zero.
func ScoreJSON(raw json.RawMessage) Report {
	abi, err := DecodeABI(raw)
	if err != nil {
		return Score(nil)
	}
	return Score(abi)
}

// DecodeABI accepts a bare ABI array or an object carrying one under "abi"
func DecodeABI(raw json.RawMessage) ([]chains.ABIEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return nil, fmt.Errorf("decoding artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return nil, fmt.Errorf("artifact has no abi field")
		}
		trimmed = artifact.ABI
	}
	return chains.ParseABI(trimmed)
}

func countFunctions(abi []chains.ABIEntry, names map[string]struct{}) int {
	n := 0
	for _, e := range abi {
		if e.Type != chains.KindFunction {
			continue
		}
		if _, ok := names[e.Name]; ok {
			n++
		}
	}
	return n
}

// matchedKeywords returns distinct keywords in first-seen order
func matchedKeywords(abi []chains.ABIEntry) []string {
	var found []string
	seen := make(map[string]bool)
	for _, e := range abi {
		if e.Type != chains.KindFunction && e.Type != chains.KindEvent {
			continue
		}
		name := strings.ToLower(e.Name)
		for _, kw := range rwaKeywords {
			if strings.Contains(name, kw) {
				if !seen[kw] {
					seen[kw] = true
					found = append(found, kw)
				}
				break
			}
		}
	}
	return found
}

func newSet(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}
