package backend

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/util"
)

type userRecord struct {
	user         models.User
	passwordHash []byte
}

// UserDirectory is the development user store. Passwords are kept as
// bcrypt hashes.
type UserDirectory struct {
	mu       sync.RWMutex
	byName   map[string]*userRecord
	byID     map[int64]*userRecord
	nextID   int64
	hashCost int
}

func NewUserDirectory(seed []util.StubUser, hashCost int) (*UserDirectory, error) {
	d := &UserDirectory{
		byName:   make(map[string]*userRecord),
		byID:     make(map[int64]*userRecord),
		nextID:   1,
		hashCost: hashCost,
	}
	for _, su := range seed {
		_, err := d.add(models.User{
			Username:    su.Username,
			Email:       su.Username + "@dangbai.local",
			DisplayName: su.Username,
			Roles:       su.Roles,
		}, su.Password)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", su.Username, err)
		}
	}
	return d, nil
}

func (d *UserDirectory) Authenticate(username, password string) (models.User, error) {
	d.mu.RLock()
	rec, ok := d.byName[strings.ToLower(username)]
	d.mu.RUnlock()

	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("compare password: %w", err)
	}
	return rec.user.Clone(), nil
}

// Register creates a ROLE_USER account.
func (d *UserDirectory) Register(req models.RegisterRequest) (models.User, error) {
	return d.add(models.User{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Roles:       []string{string(models.RoleUser)},
	}, req.Password)
}

func (d *UserDirectory) Get(userID int64) (models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.byID[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return rec.user.Clone(), nil
}

func (d *UserDirectory) add(user models.User, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.hashCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, ok := d.byName[key]; ok {
		return models.User{}, ErrUserExists
	}
	for _, rec := range d.byID {
		if user.Email != "" && strings.EqualFold(rec.user.Email, user.Email) {
			return models.User{}, ErrEmailExists
		}
	}

	user.UserID = d.nextID
	d.nextID++

	rec := &userRecord{user: user.Clone(), passwordHash: hash}
	d.byName[key] = rec
	d.byID[user.UserID] = rec
	return user.Clone(), nil
}
