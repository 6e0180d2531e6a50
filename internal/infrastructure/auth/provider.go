// Package auth provides the reference implementation of the external
// authentication provider contract: credential records in MongoDB, bcrypt
// verification, and HS256 session tokens. The engine itself never inspects
// passwords; it only consumes this interface.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/ports"
)

const credentialCollection = "auth_users"

// Provider implements ports.AuthProvider.
type Provider struct {
	coll      *mongo.Collection
	jwtSecret string
	tokenTTL  time.Duration
	log       zerolog.Logger

	mu           sync.Mutex
	current      *ports.AuthSession
	listeners    map[int]func(ports.AuthChange)
	nextListener int
}

// NewProvider returns a Provider issuing tokens valid for tokenTTL.
// If tokenTTL <= 0, 24 hours is used.
func NewProvider(db *mongo.Database, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *Provider {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Provider{
		coll:      db.Collection(credentialCollection),
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log,
		listeners: make(map[int]func(ports.AuthChange)),
	}
}

type credentialDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	DisplayName  string             `bson:"display_name,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
}

// Register creates a credential record. Returns domain.ErrIdentityExists
// when the email is already registered.
func (p *Provider) Register(ctx context.Context, email, password, displayName string) (string, error) {
	if email == "" || password == "" {
		return "", domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	doc := credentialDoc{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		CreatedAt:    time.Now().UTC(),
	}
	res, err := p.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", domain.ErrIdentityExists
		}
		return "", fmt.Errorf("insert credential: %w", err)
	}

	id, _ := res.InsertedID.(primitive.ObjectID)
	return id.Hex(), nil
}

// SignInWithPassword verifies the credentials and issues a session token.
// Any mismatch — unknown email or wrong password — yields
// domain.ErrInvalidCredentials without distinguishing the two.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*ports.AuthSession, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	var doc credentialDoc
	if err := p.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(doc.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	claims := ports.Claims{
		Subject:     doc.ID.Hex(),
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
	}
	token, err := p.issueToken(claims)
	if err != nil {
		return nil, err
	}

	session := &ports.AuthSession{Token: token, Claims: claims}
	p.setCurrent(session)
	return session, nil
}

// SignOut invalidates the current session and notifies listeners. Always
// succeeds: there is no server-side state beyond the stored credential.
func (p *Provider) SignOut(ctx context.Context) error {
	p.setCurrent(nil)
	return nil
}

// CurrentSession returns the active session, dropping it when the token has
// expired.
func (p *Provider) CurrentSession(ctx context.Context) (*ports.AuthSession, error) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	if _, err := p.parseToken(current.Token); err != nil {
		p.log.Debug().Err(err).Msg("stored session token no longer valid")
		p.setCurrent(nil)
		return nil, nil
	}
	return current, nil
}

// Restore installs a previously persisted token as the current session, so a
// restarted host process can resume without re-entering credentials.
func (p *Provider) Restore(token string) error {
	claims, err := p.parseToken(token)
	if err != nil {
		return domain.ErrInvalidCredentials
	}
	p.setCurrent(&ports.AuthSession{Token: token, Claims: claims})
	return nil
}

// OnAuthStateChange registers a listener for sign-in/sign-out transitions.
func (p *Provider) OnAuthStateChange(fn func(ports.AuthChange)) func() {
	p.mu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) setCurrent(session *ports.AuthSession) {
	p.mu.Lock()
	unchanged := p.current == nil && session == nil
	p.current = session
	targets := make([]func(ports.AuthChange), 0, len(p.listeners))
	for _, fn := range p.listeners {
		targets = append(targets, fn)
	}
	p.mu.Unlock()

	if unchanged {
		return
	}
	change := ports.AuthChange{SignedIn: session != nil, Session: session}
	for _, fn := range targets {
		fn(change)
	}
}

func (p *Provider) issueToken(claims ports.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   claims.Subject,
		"email": claims.Email,
		"name":  claims.DisplayName,
		"exp":   time.Now().Add(p.tokenTTL).Unix(),
	})
	return t.SignedString([]byte(p.jwtSecret))
}

func (p *Provider) parseToken(token string) (ports.Claims, error) {
	parsed := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, parsed, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(p.jwtSecret), nil
	})
	if err != nil || !tkn.Valid {
		return ports.Claims{}, domain.ErrInvalidCredentials
	}

	sub, _ := parsed["sub"].(string)
	email, _ := parsed["email"].(string)
	name, _ := parsed["name"].(string)
	return ports.Claims{Subject: sub, Email: email, DisplayName: name}, nil
}
