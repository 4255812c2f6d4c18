package didtoken

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const issuerPrefix = "did:ethr:"

// allowed clock drift for nbf
const nbfLeeway = 300

// Claims is the signed part of a DID token.
type Claims struct {
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"ext"`
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	Audience  string `json:"aud"`
	NotBefore int64  `json:"nbf"`
	TokenID   string `json:"tid"`
	Add       string `json:"add"`
}

// Token is a decoded DID token: a personal_sign proof over the raw claim.
type Token struct {
	Proof    string
	RawClaim string
	Claims   Claims
}

// Parse decodes a token without verifying it.
func Parse(token string) (*Token, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
		if err != nil {
			return nil, fmt.Errorf("invalid token encoding")
		}
	}

	var parts []string
	if err := json.Unmarshal(decoded, &parts); err != nil {
		return nil, fmt.Errorf("invalid token format")
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid token format")
	}

	var claims Claims
	if err := json.Unmarshal([]byte(parts[1]), &claims); err != nil {
		return nil, fmt.Errorf("invalid token claim")
	}

	return &Token{
		Proof:    parts[0],
		RawClaim: parts[1],
		Claims:   claims,
	}, nil
}

// IssuerAddress returns the ethereum address embedded in the issuer.
func (t *Token) IssuerAddress() (common.Address, error) {
	if !strings.HasPrefix(t.Claims.Issuer, issuerPrefix) {
		return common.Address{}, fmt.Errorf("invalid issuer")
	}
	addr := strings.TrimPrefix(t.Claims.Issuer, issuerPrefix)
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("invalid issuer")
	}
	return common.HexToAddress(addr), nil
}

// Validate checks the proof signer against the issuer and the validity window.
func (t *Token) Validate(now time.Time) error {
	issuer, err := t.IssuerAddress()
	if err != nil {
		return err
	}

	sig, err := hexutil.Decode(t.Proof)
	if err != nil {
		return fmt.Errorf("invalid proof")
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid proof length")
	}
	// personal_sign produces v in {27, 28}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(t.RawClaim)), sig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != issuer {
		return fmt.Errorf("signature mismatch")
	}

	unix := now.Unix()
	if t.Claims.ExpiresAt < unix {
		return fmt.Errorf("token is already expired")
	}
	if t.Claims.NotBefore-nbfLeeway > unix {
		return fmt.Errorf("token is not valid yet")
	}
	return nil
}

// Create signs a claim with key. The result is accepted by Parse and Validate.
func Create(claims Claims, key []byte) (string, error) {
	priv, err := crypto.ToECDSA(key)
	if err != nil {
		return "", err
	}
	if claims.Issuer == "" {
		claims.Issuer = issuerPrefix + crypto.PubkeyToAddress(priv.PublicKey).Hex()
	}

	rawClaim, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(accounts.TextHash(rawClaim), priv)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27

	encoded, err := json.Marshal([]string{hexutil.Encode(sig), string(rawClaim)})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(encoded), nil
}
