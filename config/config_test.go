package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/andreyvit/bongo/boltdb"
	"github.com/andreyvit/bongo/memdb"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	e := Config{Driver: DriverMemory, Database: "bongo", Path: "bongo.db"}
	if *cfg != e {
		t.Errorf("** got %+v, wanted %+v", *cfg, e)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "driver: bolt\npath: /tmp/blog.db\ndatabase: blog\n"
	if err := os.WriteFile(filepath.Join(dir, "bongo.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Driver != DriverBolt || cfg.Path != "/tmp/blog.db" || cfg.Database != "blog" {
		t.Errorf("** got %+v", *cfg)
	}

	t.Setenv("BONGO_PATH", "/var/lib/blog.db")
	t.Setenv("BONGO_VERBOSE", "true")
	cfg, err = Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != "/var/lib/blog.db" || !cfg.Verbose {
		t.Errorf("** env did not override file: %+v", *cfg)
	}
}

func TestLoadMongoURIFallback(t *testing.T) {
	t.Setenv("BONGO_DRIVER", "mongodb")
	t.Setenv("DB_IP", "10.0.0.5")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if e := "mongodb://10.0.0.5:27017"; cfg.URI != e {
		t.Errorf("** URI = %q, wanted %q", cfg.URI, e)
	}

	t.Setenv("DB_PORT", "27018")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if e := "mongodb://10.0.0.5:27018"; cfg.URI != e {
		t.Errorf("** URI = %q, wanted %q", cfg.URI, e)
	}

	t.Setenv("BONGO_URI", "mongodb://db.example.com")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if e := "mongodb://db.example.com"; cfg.URI != e {
		t.Errorf("** URI = %q, wanted %q", cfg.URI, e)
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("BONGO_DRIVER", "postgres")
	if _, err := Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("** Load = %v, wanted ErrInvalidConfig", err)
	}

	t.Setenv("BONGO_DRIVER", "mongodb")
	if _, err := Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("** Load without URI = %v, wanted ErrInvalidConfig", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bongo.yaml"), []byte("driver: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BONGO_DRIVER", "memory")
	if _, err := Load(dir); err == nil {
		t.Errorf("** Load with broken YAML succeeded")
	}
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	db, err := Connect(ctx, &Config{Driver: DriverMemory, Database: "blog"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, isMem := db.(*memdb.DB); !isMem || db.Name() != "blog" {
		t.Errorf("** memory driver = %T %q", db, db.Name())
	}
	db.Close(ctx)

	path := filepath.Join(t.TempDir(), "blog.db")
	db, err = Connect(ctx, &Config{Driver: DriverBolt, Database: "blog", Path: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close(ctx)
	if _, isBolt := db.(*boltdb.DB); !isBolt {
		t.Errorf("** bolt driver = %T", db)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("** bolt file not created: %v", err)
	}

	if _, err := Connect(ctx, &Config{Driver: "nope"}, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("** Connect(nope) = %v, wanted ErrInvalidConfig", err)
	}
}
