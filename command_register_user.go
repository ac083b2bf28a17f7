package users

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type RegisterUserMessage struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	SecondaryEmail string `json:"secondary_email"`
	Role           string `json:"role"`
	Password       string `json:"password"`
	// Provision creates the asset directories and generates both keypairs
	Provision  bool
	OnResponse func(user *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserHandler struct {
	dir *Directory
}

func NewRegisterUserHandler(dir *Directory) *RegisterUserHandler {
	return &RegisterUserHandler{dir: dir}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	variant := VariantUser
	if event.Role != "" {
		v, ok := ParseVariant(event.Role)
		if !ok {
			return NewValidationError("unknown user role", "role")
		}
		variant = v
	}

	username := usernameFor(event.Username, event.Email)
	if username != "" {
		available, err := h.dir.IsUsernameAvailable(ctx, username)
		if err != nil {
			return err
		}
		if !available {
			return goerrors.New("username is already taken", goerrors.CategoryConflict).
				WithMetadata(map[string]any{"username": username})
		}
	}

	existing, err := h.dir.LookupByEmail(ctx, event.Email, WithAnyArchived())
	if err != nil {
		return err
	}
	if existing != nil {
		return goerrors.New("email is already registered", goerrors.CategoryConflict).
			WithMetadata(map[string]any{"email": event.Email})
	}

	user, err := h.dir.NewUser(variant, NewUserInput{
		First:          event.FirstName,
		Last:           event.LastName,
		Username:       username,
		Email:          event.Email,
		SecondaryEmail: event.SecondaryEmail,
		Password:       event.Password,
	})
	if err != nil {
		return err
	}

	if err := user.Save(ctx); err != nil {
		return err
	}

	if event.Provision {
		if err := h.provision(ctx, user); err != nil {
			return err
		}
	}

	h.dir.env.emit(ctx, ActivityEventUserRegistered, user.ID(), user.ID(), map[string]any{
		"type":      string(variant),
		"provision": event.Provision,
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}
	return nil
}

func (h *RegisterUserHandler) provision(ctx context.Context, user *User) error {
	cfg := h.dir.env.cfg
	if err := user.SetPublicDirectory(ctx, cfg.PublicRoot); err != nil {
		return err
	}
	if err := user.SetPrivateDirectory(ctx, cfg.PrivateRoot); err != nil {
		return err
	}
	_, err := user.GenerateKeys(ctx, AllKeys())
	return err
}
