package utils

import (
    "crypto/hmac"
    "crypto/sha256"
    "errors"

    "github.com/golang-jwt/jwt/v5"
)

// ErrBadTicketSignature is returned for any token that does not verify:
// wrong key, wrong salt, edited bytes, or not a token at all.
var ErrBadTicketSignature = errors.New("bad ticket signature")

// TicketClaims is the minimal payload baked into a ticket QR code.  The
// short keys keep the QR code small.  There is deliberately no expiry.
type TicketClaims struct {
    TicketID      uint64 `json:"tid"`
    ReservationID uint64 `json:"rid"`
    UserID        uint64 `json:"uid"`
    jwt.RegisteredClaims
}

// Complete reports whether all three identifiers are present and non-zero.
func (c TicketClaims) Complete() bool {
    return c.TicketID != 0 && c.ReservationID != 0 && c.UserID != 0
}

// TicketSigner produces and checks opaque ticket tokens.  The HMAC key is
// derived from the server secret and a salt, and the salt is also pinned as
// the audience, so a token minted for another resource kind with the same
// secret never verifies here.
type TicketSigner struct {
    key    []byte
    salt   string
    parser *jwt.Parser
}

// NewTicketSigner derives the signing key as HMAC-SHA256(secret, salt+"signer").
func NewTicketSigner(secret, salt string) *TicketSigner {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write([]byte(salt + "signer"))
    return &TicketSigner{
        key:  mac.Sum(nil),
        salt: salt,
        parser: jwt.NewParser(
            jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
            jwt.WithAudience(salt),
            // reject non-canonical base64 so every character of the token is significant
            jwt.WithStrictDecoding(),
        ),
    }
}

// Sign returns a URL-safe token over {tid, rid, uid}.
func (s *TicketSigner) Sign(ticketID, reservationID, userID uint64) (string, error) {
    return s.sign(TicketClaims{TicketID: ticketID, ReservationID: reservationID, UserID: userID})
}

func (s *TicketSigner) sign(c TicketClaims) (string, error) {
    c.Audience = jwt.ClaimStrings{s.salt}
    return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
}

// Parse verifies a token and returns its claims.  It never panics on
// adversarial input; every failure is ErrBadTicketSignature.  Callers must
// still check Complete on the result.
func (s *TicketSigner) Parse(token string) (TicketClaims, error) {
    var claims TicketClaims
    if token == "" {
        return claims, ErrBadTicketSignature
    }
    if _, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
        return s.key, nil
    }); err != nil {
        return TicketClaims{}, ErrBadTicketSignature
    }
    return claims, nil
}
