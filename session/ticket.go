package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rohanthewiz/serr"
)

// Feed ticket constants
const (
	// TicketExpirationHours defines how long a feed ticket stays valid.
	// One day matches the lifetime of the plan it grants access to.
	TicketExpirationHours = 24

	// TicketIssuer identifies the application that minted the ticket.
	TicketIssuer = "dayplan"
)

// FeedTicketClaims extends the JWT registered claims with the client
// identity and the plan date the feed scopes its pushes to.
type FeedTicketClaims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
	PlanDate string `json:"plan_date"`
}

// MintFeedTicket signs a short-lived HS256 ticket for one client and plan
// date. The ticket rides the websocket dial as a bearer header.
func MintFeedTicket(secret []byte, clientID, planDate string) (string, error) {
	if len(secret) == 0 {
		return "", serr.New("feed secret is empty")
	}

	claims := FeedTicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TicketIssuer,
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * TicketExpirationHours)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		ClientID: clientID,
		PlanDate: planDate,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", serr.Wrap(err, "failed to sign feed ticket")
	}

	return signed, nil
}

// ValidateFeedTicket parses a ticket string and checks its signature and
// expiry. Returns the claims if valid, or an error if the ticket is
// expired, malformed, or signed with a different secret.
func ValidateFeedTicket(secret []byte, ticket string) (*FeedTicketClaims, error) {
	token, err := jwt.ParseWithClaims(ticket, &FeedTicketClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, serr.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, serr.Wrap(err, "failed to parse feed ticket")
	}

	claims, ok := token.Claims.(*FeedTicketClaims)
	if !ok || !token.Valid {
		return nil, serr.New("invalid feed ticket claims")
	}

	return claims, nil
}
