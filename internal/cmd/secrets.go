package cmd

import (
	"fmt"

	"github.com/jimezsa/gigscope/internal/secrets"
)

type SecretsCmd struct {
	Encrypt EncryptSecretCmd `cmd:"" help:"Encrypt an API key with the configured encryption key."`
	Decrypt DecryptSecretCmd `cmd:"" help:"Decrypt a stored API key."`
}

type EncryptSecretCmd struct {
	Value string `arg:"" help:"Plain-text value to encrypt."`
}

type DecryptSecretCmd struct {
	Token string `arg:"" help:"Fernet token to decrypt."`
}

func (c *EncryptSecretCmd) Run(ctx *Context) error {
	box, err := secrets.New(ctx.Config.EncryptionKey)
	if err != nil {
		return err
	}
	token, err := box.Encrypt(c.Value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Out, token)
	return err
}

func (c *DecryptSecretCmd) Run(ctx *Context) error {
	box, err := secrets.New(ctx.Config.EncryptionKey)
	if err != nil {
		return err
	}
	value, err := box.Decrypt(c.Token)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Out, value)
	return err
}
