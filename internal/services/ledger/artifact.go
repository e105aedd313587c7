package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Artifact is a compiled escrow contract: {"abi": [...], "bytecode": "0x..."}.
type Artifact struct {
	ABI      abi.ABI
	Bytecode []byte
}

type artifactFile struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode string          `json:"bytecode"`
}

var requiredFunctions = []string{
	"completeWork", "releasePayment", "getProjectStatus", "getContractBalance",
	"employer", "freelancer", "isCompleted", "isPaid",
}

func LoadArtifact(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract artifact: %w", err)
	}
	return ParseArtifact(raw)
}

func ParseArtifact(raw []byte) (*Artifact, error) {
	var f artifactFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode contract artifact: %w", err)
	}
	if len(f.ABI) == 0 {
		return nil, fmt.Errorf("contract artifact has no abi")
	}
	parsed, err := abi.JSON(bytes.NewReader(f.ABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	for _, name := range requiredFunctions {
		if _, ok := parsed.Methods[name]; !ok {
			return nil, fmt.Errorf("contract abi lacks %s()", name)
		}
	}

	code := strings.TrimSpace(f.Bytecode)
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("contract artifact has no bytecode")
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	return &Artifact{ABI: parsed, Bytecode: common.FromHex(code)}, nil
}
