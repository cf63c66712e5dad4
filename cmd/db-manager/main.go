package main

import (
	"archive/zip"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"importserver/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "list":
		handleList()
	case "stats":
		handleStats()
	case "integrity":
		handleIntegrity()
	case "vacuum":
		handleVacuum()
	case "backup":
		handleBackup()
	case "cleanup-media":
		handleCleanupMedia()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Database Manager - CLI utility for catalog and service databases")
	fmt.Println()
	fmt.Println("Usage: db-manager <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  list                    List all database files")
	fmt.Println("  stats                   Show catalog statistics and recent import jobs")
	fmt.Println("  integrity               Run PRAGMA integrity_check on both databases")
	fmt.Println("  vacuum                  Run VACUUM on both databases")
	fmt.Println("  backup [--output=path]  Create a ZIP backup of all databases")
	fmt.Println("  cleanup-media           Delete cached images not referenced by the catalog")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  db-manager list")
	fmt.Println("  db-manager stats")
	fmt.Println("  db-manager backup --output=backup.zip")
	fmt.Println("  db-manager cleanup-media --dry-run")
}

// Защищенные файлы: рабочие базы сервера удалять нельзя
var protectedFiles = map[string]bool{
	"catalog.db": true,
	"service.db": true,
}

// defaultDBPath возвращает data/<name>, а при его отсутствии <name>
// в текущей директории
func defaultDBPath(name string) string {
	path := filepath.Join("data", name)
	if _, err := os.Stat(path); err != nil && errors.Is(err, os.ErrNotExist) {
		return name
	}
	return path
}

// classifyDBFile определяет тип файла БД по имени
func classifyDBFile(fileName string) string {
	switch fileName {
	case "catalog.db":
		return "catalog"
	case "service.db":
		return "service"
	default:
		return "other"
	}
}

func handleList() {
	scanPaths := []string{
		".",
		"data",
		"/app",
		"/app/data",
	}

	fileMap := make(map[string]bool)
	found := 0

	for _, scanPath := range scanPaths {
		if _, err := os.Stat(scanPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			log.Printf("Error checking path %s: %v, skipping", scanPath, err)
			continue
		}

		err := filepath.Walk(scanPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}

			if info.IsDir() {
				return nil
			}

			if !strings.HasSuffix(strings.ToLower(path), ".db") {
				return nil
			}

			absPath, err := filepath.Abs(path)
			if err != nil {
				return nil
			}

			if fileMap[absPath] {
				return nil
			}
			fileMap[absPath] = true
			found++

			fileName := filepath.Base(absPath)
			protected := ""
			if protectedFiles[fileName] {
				protected = " [PROTECTED]"
			}

			fmt.Printf("%s%s\n", absPath, protected)
			fmt.Printf("  Type: %s, Size: %d bytes, Modified: %s\n\n",
				classifyDBFile(fileName), info.Size(), info.ModTime().Format(time.RFC3339))
			return nil
		})

		if err != nil {
			log.Printf("Error scanning path %s: %v", scanPath, err)
		}
	}

	fmt.Printf("Found %d database files\n", found)
}

func handleStats() {
	catalogDB, err := database.NewCatalogDB(defaultDBPath("catalog.db"))
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	defer catalogDB.Close()

	stats, err := catalogDB.GetStats()
	if err != nil {
		log.Fatalf("Failed to read catalog stats: %v", err)
	}

	fmt.Println("Catalog:")
	fmt.Printf("  Total products: %d\n", stats.Total)
	fmt.Printf("  Published: %d\n", stats.Published)
	fmt.Println("  By enrich status:")
	for status, count := range stats.ByEnrichStatus {
		fmt.Printf("    %s: %d\n", status, count)
	}
	fmt.Println("  By image status:")
	for status, count := range stats.ByImageStatus {
		fmt.Printf("    %s: %d\n", status, count)
	}
	fmt.Println("  By source:")
	for source, count := range stats.BySource {
		fmt.Printf("    %s: %d\n", source, count)
	}

	serviceDB, err := database.NewServiceDB(defaultDBPath("service.db"))
	if err != nil {
		log.Printf("Warning: Could not open service database: %v", err)
		return
	}
	defer serviceDB.Close()

	jobs, err := serviceDB.ListImportJobs(10)
	if err != nil {
		log.Printf("Warning: Could not read import jobs: %v", err)
		return
	}

	fmt.Println()
	fmt.Printf("Recent import jobs (%d):\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("  %s  %-10s %-9s processed=%d ok=%d fail=%d\n",
			job.JobID, job.JobType, job.Status, job.Processed, job.SuccessCount, job.FailCount)
	}
}

func handleIntegrity() {
	paths := []string{defaultDBPath("catalog.db"), defaultDBPath("service.db")}
	failed := false

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			log.Printf("Skipping %s: %v", path, err)
			continue
		}

		result, err := runIntegrityCheck(path)
		if err != nil {
			log.Printf("✗ %s: %v", path, err)
			failed = true
			continue
		}

		if result == "ok" {
			fmt.Printf("✓ %s: ok\n", path)
		} else {
			fmt.Printf("✗ %s: %s\n", path, result)
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
}

// runIntegrityCheck выполняет PRAGMA integrity_check и возвращает
// первую строку отчета ("ok" для здоровой базы)
func runIntegrityCheck(path string) (string, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return "", err
	}
	return result, nil
}

func handleVacuum() {
	paths := []string{defaultDBPath("catalog.db"), defaultDBPath("service.db")}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			continue
		}
		sizeBefore := info.Size()

		db, err := sql.Open("sqlite3", path)
		if err != nil {
			log.Printf("✗ %s: %v", path, err)
			continue
		}

		_, err = db.Exec("VACUUM")
		db.Close()
		if err != nil {
			log.Printf("✗ %s: VACUUM failed: %v", path, err)
			continue
		}

		sizeAfter := sizeBefore
		if info, err := os.Stat(path); err == nil {
			sizeAfter = info.Size()
		}
		fmt.Printf("✓ %s: %d -> %d bytes\n", path, sizeBefore, sizeAfter)
	}
}

func handleBackup() {
	outputFlag := flag.NewFlagSet("backup", flag.ExitOnError)
	outputPath := outputFlag.String("output", "", "Output path for backup file")
	outputFlag.Parse(os.Args[2:])

	// Определяем путь к бэкапу
	backupDir := filepath.Join("data", "backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		log.Fatalf("Failed to create backup directory: %v", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	backupFileName := fmt.Sprintf("backup_%s.zip", timestamp)
	if *outputPath != "" {
		backupFileName = *outputPath
		if !strings.HasSuffix(backupFileName, ".zip") {
			backupFileName += ".zip"
		}
	}

	backupPath := filepath.Join(backupDir, backupFileName)

	// Создаем ZIP архив
	zipFile, err := os.Create(backupPath)
	if err != nil {
		log.Fatalf("Failed to create backup file: %v", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	scanPaths := []string{
		".",
		"data",
	}

	fileMap := make(map[string]bool)
	addedFiles := 0
	totalSize := int64(0)

	for _, scanPath := range scanPaths {
		if _, err := os.Stat(scanPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			log.Printf("Error checking path %s: %v, skipping", scanPath, err)
			continue
		}

		err := filepath.Walk(scanPath, func(filePath string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}

			if info.IsDir() {
				// Бэкапы внутрь бэкапа не кладем
				if filepath.Base(filePath) == "backups" {
					return filepath.SkipDir
				}
				return nil
			}

			if !strings.HasSuffix(strings.ToLower(filePath), ".db") {
				return nil
			}

			absPath, err := filepath.Abs(filePath)
			if err != nil {
				return nil
			}

			if fileMap[absPath] {
				return nil
			}
			fileMap[absPath] = true

			// Открываем файл
			sourceFile, err := os.Open(filePath)
			if err != nil {
				log.Printf("Failed to open file %s: %v", filePath, err)
				return nil
			}
			defer sourceFile.Close()

			// Создаем запись в архиве
			archiveFile, err := zipWriter.Create(filepath.Base(absPath))
			if err != nil {
				log.Printf("Failed to create archive entry for %s: %v", filePath, err)
				return nil
			}

			// Копируем содержимое
			if _, err := io.Copy(archiveFile, sourceFile); err != nil {
				log.Printf("Failed to copy file %s to archive: %v", filePath, err)
				return nil
			}

			addedFiles++
			totalSize += info.Size()
			return nil
		})

		if err != nil {
			log.Printf("Error scanning path %s: %v", scanPath, err)
		}
	}

	fmt.Printf("Backup created successfully: %s\n", backupPath)
	fmt.Printf("Files: %d, Total size: %d bytes\n", addedFiles, totalSize)
}

func handleCleanupMedia() {
	cleanupFlag := flag.NewFlagSet("cleanup-media", flag.ExitOnError)
	dryRun := cleanupFlag.Bool("dry-run", false, "Only print orphaned files, do not delete")
	mediaDir := cleanupFlag.String("media-dir", filepath.Join("data", "media"), "Media cache directory")
	cleanupFlag.Parse(os.Args[2:])

	catalogDB, err := database.NewCatalogDB(defaultDBPath("catalog.db"))
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	defer catalogDB.Close()

	referenced, err := referencedMediaNames(catalogDB.GetDB())
	if err != nil {
		log.Fatalf("Failed to collect referenced images: %v", err)
	}

	orphans, err := findOrphanMedia(*mediaDir, referenced)
	if err != nil {
		log.Fatalf("Failed to scan media directory: %v", err)
	}

	if len(orphans) == 0 {
		fmt.Println("No orphaned media files found.")
		return
	}

	deletedCount := 0
	for _, path := range orphans {
		if *dryRun {
			fmt.Printf("Would delete: %s\n", path)
			continue
		}
		fmt.Printf("Deleting orphaned media file: %s\n", path)
		if err := os.Remove(path); err != nil {
			log.Printf("Failed to delete %s: %v", path, err)
		} else {
			deletedCount++
		}
	}

	if *dryRun {
		fmt.Printf("\nDry run: %d orphaned media files found.\n", len(orphans))
	} else {
		fmt.Printf("\nCleanup completed. Deleted %d orphaned media files.\n", deletedCount)
	}
}

// referencedMediaNames собирает базовые имена всех локальных файлов
// изображений, на которые ссылается каталог: main_image, галерея и
// изображения вариантов
func referencedMediaNames(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT COALESCE(main_image, ''), COALESCE(gallery, ''), COALESCE(variants, '') FROM products`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	referenced := make(map[string]bool)
	addPath := func(path string) {
		if path != "" {
			referenced[filepath.Base(path)] = true
		}
	}

	for rows.Next() {
		var mainImage, galleryJSON, variantsJSON string
		if err := rows.Scan(&mainImage, &galleryJSON, &variantsJSON); err != nil {
			return nil, err
		}

		addPath(mainImage)

		if galleryJSON != "" {
			var gallery []string
			if err := json.Unmarshal([]byte(galleryJSON), &gallery); err == nil {
				for _, p := range gallery {
					addPath(p)
				}
			}
		}

		if variantsJSON != "" {
			var variants []struct {
				Image string `json:"image"`
			}
			if err := json.Unmarshal([]byte(variantsJSON), &variants); err == nil {
				for _, v := range variants {
					addPath(v.Image)
				}
			}
		}
	}

	return referenced, rows.Err()
}

// findOrphanMedia возвращает файлы кэша, не упомянутые в каталоге.
// Сравнение по базовому имени: кэш контент-адресуемый и имена уникальны
func findOrphanMedia(mediaDir string, referenced map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(mediaDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var orphans []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !referenced[entry.Name()] {
			orphans = append(orphans, filepath.Join(mediaDir, entry.Name()))
		}
	}

	return orphans, nil
}
