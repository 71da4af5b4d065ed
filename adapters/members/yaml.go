package members

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/layer-3/sudomode/core"
	"gopkg.in/yaml.v3"
)

type fixtureFile struct {
	Members []fixtureMember `yaml:"members"`
}

type fixtureMember struct {
	ID             string     `yaml:"id"`
	Email          string     `yaml:"email"`
	FirstName      string     `yaml:"first_name"`
	Surname        string     `yaml:"surname"`
	PasswordHash   string     `yaml:"password_hash"`
	Admin          bool       `yaml:"admin"`
	PasswordExpiry *time.Time `yaml:"password_expiry"`
}

// LoadFile reads members from a YAML fixture file
func LoadFile(path string) ([]*core.Member, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open members file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads members from a YAML document of the form
//
//	members:
//	  - id: "1"
//	    email: admin@example.com
//	    password_hash: $2a$10$...
//	    admin: true
func Decode(r io.Reader) ([]*core.Member, error) {
	var file fixtureFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode members: %w", err)
	}

	seen := make(map[string]bool, len(file.Members))
	out := make([]*core.Member, 0, len(file.Members))
	for i, fm := range file.Members {
		if fm.ID == "" || fm.Email == "" {
			return nil, fmt.Errorf("member %d: id and email are required", i)
		}
		if seen[fm.ID] {
			return nil, fmt.Errorf("member %d: duplicate id %q", i, fm.ID)
		}
		seen[fm.ID] = true

		out = append(out, &core.Member{
			ID:             fm.ID,
			Email:          fm.Email,
			FirstName:      fm.FirstName,
			Surname:        fm.Surname,
			PasswordHash:   fm.PasswordHash,
			Admin:          fm.Admin,
			PasswordExpiry: fm.PasswordExpiry,
		})
	}
	return out, nil
}
