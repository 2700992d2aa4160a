package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/mrik-soulpage/pharmacovigilance/config"
	"github.com/mrik-soulpage/pharmacovigilance/storage"
)

// backupPrefix trennt DB-Dumps von archivierten Trackern im selben Bucket.
const backupPrefix = "backups/"

// backupOptions sind die Stellschrauben, die nur dieses Werkzeug kennt;
// Datenbank und S3-Archiv kommen aus der geteilten Service-Konfiguration.
type backupOptions struct {
	Keep int `envconfig:"KEEP_BACKUPS" default:"4"`

	// 0 = einmaliger Lauf; sonst Dauerbetrieb mit diesem Abstand.
	Interval time.Duration `envconfig:"BACKUP_INTERVAL" default:"0"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Fehler beim Laden der Konfiguration: %v", err)
	}
	var opts backupOptions
	if err := envconfig.Process("", &opts); err != nil {
		log.Fatalf("Fehler beim Laden der Backup-Optionen: %v", err)
	}

	store, err := storage.NewArchiveStore(cfg)
	if err != nil {
		log.Fatalf("S3-Archiv: %v", err)
	}

	if opts.Interval <= 0 {
		if err := runBackup(cfg, store, opts.Keep); err != nil {
			log.Fatalf("Backup fehlgeschlagen: %v", err)
		}
		return
	}

	log.Printf("Backup-Dienst gestartet, Intervall %s", opts.Interval)
	for {
		// Im Dauerbetrieb überlebt der Dienst einzelne Fehlschläge.
		if err := runBackup(cfg, store, opts.Keep); err != nil {
			log.Printf("Backup fehlgeschlagen: %v", err)
		}
		time.Sleep(opts.Interval)
	}
}

func runBackup(cfg *config.Config, store *storage.ArchiveStore, keep int) error {
	log.Println("Starte Backup der Literaturüberwachungs-Datenbank...")

	dump, err := compressedDump(cfg)
	if err != nil {
		return fmt.Errorf("db-dump: %w", err)
	}

	ctx := context.Background()
	key := fmt.Sprintf("%spv-backup-%s.sql.gz", backupPrefix, time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	link, err := store.UploadFile(ctx, key, dump)
	if err != nil {
		return fmt.Errorf("s3-upload: %w", err)
	}
	log.Printf("Backup erfolgreich hochgeladen: %s", link)

	if err := rotateBackups(ctx, store, keep); err != nil {
		return fmt.Errorf("rotation: %w", err)
	}

	log.Println("Backup-Prozess erfolgreich abgeschlossen.")
	return nil
}

// compressedDump führt pg_dump aus und gibt das gzip-komprimierte Ergebnis zurück.
func compressedDump(cfg *config.Config) ([]byte, error) {
	cmd := exec.Command("pg_dump",
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w", // Passwort kommt über PGPASSWORD
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.DBPassword)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	cmd.Stdout = zw
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rotateBackups behält die neuesten Dumps unter dem Backup-Präfix und löscht
// den Rest; archivierte Tracker bleiben unangetastet.
func rotateBackups(ctx context.Context, store *storage.ArchiveStore, keep int) error {
	objects, err := store.ListObjects(ctx, backupPrefix)
	if err != nil {
		return err
	}
	if len(objects) <= keep {
		return nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	for _, obj := range objects[keep:] {
		log.Printf("Lösche altes Backup: %s", obj.Key)
		if err := store.Delete(ctx, obj.Key); err != nil {
			log.Printf("Fehler beim Löschen von %s: %v", obj.Key, err)
		}
	}
	return nil
}
