package slateauth

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
)

func maxBytes(limit int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if limit > 0 && len(s) > limit {
			return fmt.Errorf("must be at most %d bytes", limit)
		}
		return nil
	}
}

func (e *Engine) validateSignUp(r *SignUpRequest) error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, e.config.Account.MaxUsernameLength)),
		validation.Field(&r.Password, validation.Required, validation.By(maxBytes(e.config.Password.MaxPasswordBytes))),
		validation.Field(&r.Nickname, validation.Length(0, e.config.Account.MaxNicknameLength)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (e *Engine) validateNickname(nickname string) error {
	err := validation.Validate(nickname,
		validation.Required,
		validation.Length(1, e.config.Account.MaxNicknameLength),
	)
	if err != nil {
		return fmt.Errorf("%w: nickname %v", ErrInvalidInput, err)
	}
	return nil
}

func (e *Engine) validatePassword(plaintext string) error {
	err := validation.Validate(plaintext,
		validation.Required,
		validation.By(maxBytes(e.config.Password.MaxPasswordBytes)),
	)
	if err != nil {
		return fmt.Errorf("%w: password %v", ErrInvalidInput, err)
	}
	return nil
}

func requireUsername(username string) error {
	if username == "" {
		return errors.Join(ErrInvalidInput, errors.New("username is required"))
	}
	return nil
}
