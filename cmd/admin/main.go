package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rebel7/certserver/internal/auth"
	"github.com/rebel7/certserver/internal/cert"
	"github.com/rebel7/certserver/internal/config"
	"github.com/rebel7/certserver/internal/db"
	"github.com/rebel7/certserver/internal/db/repository"
	"github.com/rebel7/certserver/internal/models"
	"github.com/rebel7/certserver/internal/policy"
)

var (
	configPath string
	cfg        *config.Config
	database   *db.DB
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "ESG Certificate Server administration tool",
	Long:  "Administrative tool for issuing and verifying ESG certificates and inspecting audit logs",
}

var totpCmd = &cobra.Command{
	Use:   "totp",
	Short: "Manage the admin TOTP second factor",
}

var totpGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a TOTP secret for the admin credential",
	RunE:  generateTOTP,
}

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage certificates",
}

var certIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a certificate directly against the store",
	RunE:  issueCert,
}

var certVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a certificate by code",
	RunE:  verifyCert,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect audit logs",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent audit log entries",
	RunE:  listAudit,
}

var auditFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List recent failed authentication attempts",
	RunE:  listFailedAuth,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit log entries older than the retention window",
	RunE:  pruneAudit,
}

var (
	companyName    string
	companyVAT     string
	companyCountry string
	level          string
	expiresAt      string
	certCode       string
	auditAction    string
	auditLimit     int
	auditSince     int
	retentionDays  int
)

func init() {
	// Root flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (optional; env vars suffice)")

	// Cert issue flags
	certIssueCmd.Flags().StringVar(&companyName, "company", "", "Company name (required)")
	certIssueCmd.Flags().StringVar(&companyVAT, "vat", "", "Company VAT number")
	certIssueCmd.Flags().StringVar(&companyCountry, "country", "", "Company country")
	certIssueCmd.Flags().StringVar(&level, "level", "", "Compliance level: bronze, silver, gold, platinum (required)")
	certIssueCmd.Flags().StringVar(&expiresAt, "expires", "", "Expiry timestamp (RFC 3339)")

	certIssueCmd.MarkFlagRequired("company")
	certIssueCmd.MarkFlagRequired("level")

	// Cert verify flags
	certVerifyCmd.Flags().StringVar(&certCode, "code", "", "Certificate code (required)")
	certVerifyCmd.MarkFlagRequired("code")

	// Audit flags
	auditListCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum entries to list")
	auditFailedCmd.Flags().IntVar(&auditSince, "since", 24, "Look back this many hours")
	auditFailedCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum entries to list")
	auditPruneCmd.Flags().IntVar(&retentionDays, "days", 90, "Keep entries newer than this many days")

	// Add commands
	totpCmd.AddCommand(totpGenerateCmd)
	certCmd.AddCommand(certIssueCmd)
	certCmd.AddCommand(certVerifyCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditFailedCmd)
	auditCmd.AddCommand(auditPruneCmd)
	rootCmd.AddCommand(totpCmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initDB() error {
	_ = godotenv.Load()

	var err error
	cfg, err = config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Database.Path == "" {
		return fmt.Errorf("no database configured: set %s", config.EnvDBPath)
	}

	database, err = db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(database, cfg.Database.Table); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func generateTOTP(cmd *cobra.Command, args []string) error {
	secret, err := auth.GenerateTOTPSecret()
	if err != nil {
		return err
	}

	fmt.Printf("TOTP secret: %s\n", secret)
	fmt.Printf("Provisioning URL: %s\n", auth.ProvisioningURL(secret, ""))
	fmt.Printf("\nSet %s to enable the second factor on issuance.\n", config.EnvAdminTOTPSecret)
	return nil
}

func issueCert(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	input := policy.IssueInput{
		CompanyName: companyName,
		Level:       level,
	}
	if companyVAT != "" {
		input.CompanyVAT = &companyVAT
	}
	if companyCountry != "" {
		input.CompanyCountry = &companyCountry
	}
	if expiresAt != "" {
		input.ExpiresAt = &expiresAt
	}

	params, err := policy.NewValidator().ValidateIssueRequest(input)
	if err != nil {
		return err
	}

	generator := cert.NewCodeGenerator(cfg.Certificate.CodePrefix, cfg.Certificate.CodeScope)
	record, err := cert.BuildRecord(generator, cfg.Certificate.IssuerName,
		params.Company, params.Level, params.ExpiresAt, nil, time.Now())
	if err != nil {
		return err
	}

	certs := repository.NewCertRepository(database.DB, cfg.Database.Table)
	if err := certs.Insert(record); err != nil {
		return fmt.Errorf("failed to store certificate: %w", err)
	}

	details, _ := json.Marshal(map[string]string{
		"certificate_code": record.CertificateCode,
		"level":            record.Level,
		"company":          record.Company.Name,
	})
	audit := repository.NewAuditRepository(database.DB)
	if err := audit.Create(&models.AuditLog{
		Action:   models.ActionCertIssue,
		ClientIP: "cli",
		Success:  true,
		Details:  string(details),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write audit entry: %v\n", err)
	}

	return printJSON(cert.Normalize(record, cfg.Certificate.IssuerName, time.Now()))
}

func verifyCert(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	certs := repository.NewCertRepository(database.DB, cfg.Database.Table)
	record, err := certs.GetByCode(certCode)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("certificate not found: %s", certCode)
	}

	return printJSON(cert.Normalize(record, cfg.Certificate.IssuerName, time.Now()))
}

func listAudit(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	audit := repository.NewAuditRepository(database.DB)
	logs, err := audit.List(auditAction, auditLimit)
	if err != nil {
		return err
	}

	printAuditEntries(logs)
	return nil
}

func listFailedAuth(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	audit := repository.NewAuditRepository(database.DB)
	since := time.Now().UTC().Add(-time.Duration(auditSince) * time.Hour)
	logs, err := audit.ListFailedAuth(since, auditLimit)
	if err != nil {
		return err
	}

	printAuditEntries(logs)
	return nil
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	audit := repository.NewAuditRepository(database.DB)
	before := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := audit.DeleteOld(before)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d audit entries older than %s\n", deleted, before.Format(time.RFC3339))
	return nil
}

func printAuditEntries(logs []*models.AuditLog) {
	for _, entry := range logs {
		status := "ok"
		if !entry.Success {
			status = "FAILED"
		}
		fmt.Printf("%s  %-12s %-6s %s %s\n",
			entry.Timestamp.Format(time.RFC3339), entry.Action, status,
			entry.ClientIP, entry.ErrorMsg)
	}
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
