package explorer

import "strings"

// solcLongVersions maps release versions to the commit-qualified form explorers require
var solcLongVersions = map[string]string{
	"0.8.26": "v0.8.26+commit.8a97fa7a",
	"0.8.25": "v0.8.25+commit.b61c2a91",
	"0.8.24": "v0.8.24+commit.e11b9ed9",
	"0.8.23": "v0.8.23+commit.39ed3172",
	"0.8.22": "v0.8.22+commit.4f6ee32e",
	"0.8.21": "v0.8.21+commit.d9974bed",
	"0.8.20": "v0.8.20+commit.a1b79de6",
	"0.8.19": "v0.8.19+commit.7dd6d404",
	"0.8.18": "v0.8.18+commit.87f61d96",
	"0.8.17": "v0.8.17+commit.8df45f5f",
	"0.8.16": "v0.8.16+commit.07a7930e",
	"0.8.15": "v0.8.15+commit.e14f2714",
	"0.8.14": "v0.8.14+commit.80d49f37",
	"0.8.13": "v0.8.13+commit.abaa5c0e",
	"0.8.12": "v0.8.12+commit.f00d7308",
	"0.8.11": "v0.8.11+commit.d7f03943",
	"0.8.10": "v0.8.10+commit.fc410830",
	"0.8.9":  "v0.8.9+commit.e5eed63a",
	"0.8.8":  "v0.8.8+commit.05d6e8c4",
	"0.8.7":  "v0.8.7+commit.e28d00a7",
	"0.8.6":  "v0.8.6+commit.11564f7e",
	"0.8.5":  "v0.8.5+commit.af6e0116",
	"0.8.4":  "v0.8.4+commit.c7e474f2",
	"0.8.3":  "v0.8.3+commit.8d00100c",
	"0.8.2":  "v0.8.2+commit.661d1103",
	"0.8.1":  "v0.8.1+commit.df193b15",
	"0.8.0":  "v0.8.0+commit.c7c47477",
}

// NormalizeCompilerVersion returns the long form of a solc version.
// Unknown versions, including already-long ones, get a "v" prefix and pass through.
func NormalizeCompilerVersion(version string) string {
	raw := strings.TrimPrefix(strings.TrimSpace(version), "v")
	if long, ok := solcLongVersions[raw]; ok {
		return long
	}
	return "v" + raw
}
