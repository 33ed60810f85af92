package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rakhadavedra/sow-analysis/internal/auth"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed reference data",
	Long:  `Seed system roles, permissions, menu entries, the default admin account and the starter prompt set. Safe to run repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		seedPermissions(db)
		seedRoles(db)
		seedMenu(db)
		seedAdminUser(db, cfg.Security.BCryptCost)
		seedPrompts(db)

		fmt.Println("Seeding complete")
	},
}

var permissionSeed = []struct {
	Code        string
	DisplayName string
	Category    string
	Description string
}{
	{"user.manage", "Manage users", "administration", "Create, update, deactivate users and assign their roles"},
	{"role.manage", "Manage roles", "administration", "Create and edit roles and their permission grants"},
	{"permission.view", "View permissions", "administration", "List the permission reference data"},
	{"prompt.manage", "Manage prompts", "analysis", "Maintain the analysis prompt catalog"},
	{"document.upload", "Upload documents", "documents", "Upload SOW documents for analysis"},
	{"document.view", "View all documents", "documents", "See every user's documents and results"},
	{"audit.view", "View audit log", "administration", "Read the administrative audit trail"},
	{"cache.view", "View cache stats", "system", "Inspect cache hit and miss counters"},
}

var roleSeed = []struct {
	Name        string
	DisplayName string
	Description string
	Permissions []string
}{
	{"admin", "Administrator", "Full access to every feature",
		[]string{"user.manage", "role.manage", "permission.view", "prompt.manage", "document.upload", "document.view", "audit.view", "cache.view"}},
	{"analyst", "Analyst", "Uploads documents and maintains prompts",
		[]string{"document.upload", "prompt.manage"}},
	{"viewer", "Viewer", "Read-only access to all analysis results",
		[]string{"document.view"}},
}

func seedPermissions(db *gorm.DB) {
	for _, p := range permissionSeed {
		var id int64
		if err := db.Raw("SELECT id FROM permissions WHERE code = ?", p.Code).Row().Scan(&id); err == nil {
			continue
		}
		if err := db.Exec(
			"INSERT INTO permissions (code, display_name, category, description, created_at) VALUES (?, ?, ?, ?, now())",
			p.Code, p.DisplayName, p.Category, p.Description).Error; err != nil {
			log.Fatalf("failed to insert permission %s: %v", p.Code, err)
		}
		fmt.Println("Seeded permission:", p.Code)
	}
}

func seedRoles(db *gorm.DB) {
	for _, r := range roleSeed {
		var roleID int64
		if err := db.Raw("SELECT id FROM roles WHERE name = ?", r.Name).Row().Scan(&roleID); err != nil {
			if err := db.Exec(
				"INSERT INTO roles (name, display_name, description, is_system_role, created_at, updated_at) VALUES (?, ?, ?, true, now(), now())",
				r.Name, r.DisplayName, r.Description).Error; err != nil {
				log.Fatalf("failed to insert role %s: %v", r.Name, err)
			}
			if err := db.Raw("SELECT id FROM roles WHERE name = ?", r.Name).Row().Scan(&roleID); err != nil {
				log.Fatalf("role not found after insert %s: %v", r.Name, err)
			}
			fmt.Println("Seeded role:", r.Name)
		}

		for _, code := range r.Permissions {
			var permID int64
			if err := db.Raw("SELECT id FROM permissions WHERE code = ?", code).Row().Scan(&permID); err != nil {
				log.Fatalf("permission not found %s: %v", code, err)
			}
			var exists int
			if err := db.Raw("SELECT 1 FROM role_permissions WHERE role_id = ? AND permission_id = ?", roleID, permID).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec(
				"INSERT INTO role_permissions (role_id, permission_id, created_at) VALUES (?, ?, now())",
				roleID, permID).Error; err != nil {
				log.Fatalf("failed to grant %s to role %s: %v", code, r.Name, err)
			}
		}
	}
}

func seedMenu(db *gorm.DB) {
	type menuRow struct {
		Key                string
		Label              string
		Icon               string
		Path               string
		GroupName          *string
		GroupOrder         int
		GroupIcon          string
		DisplayOrder       int
		RequiredPermission *string
	}

	strPtr := func(s string) *string { return &s }
	analysisGroup := strPtr("Analysis")
	adminGroup := strPtr("Administration")

	rows := []menuRow{
		{Key: "dashboard", Label: "Dashboard", Icon: "home", Path: "/dashboard", DisplayOrder: 1},
		{Key: "documents", Label: "Documents", Icon: "file-text", Path: "/documents", GroupName: analysisGroup, GroupOrder: 1, GroupIcon: "search", DisplayOrder: 1},
		{Key: "upload", Label: "Upload", Icon: "upload", Path: "/documents/upload", GroupName: analysisGroup, GroupOrder: 1, GroupIcon: "search", DisplayOrder: 2, RequiredPermission: strPtr("document.upload")},
		{Key: "prompts", Label: "Prompts", Icon: "terminal", Path: "/prompts", GroupName: analysisGroup, GroupOrder: 1, GroupIcon: "search", DisplayOrder: 3, RequiredPermission: strPtr("prompt.manage")},
		{Key: "users", Label: "Users", Icon: "users", Path: "/admin/users", GroupName: adminGroup, GroupOrder: 2, GroupIcon: "settings", DisplayOrder: 1, RequiredPermission: strPtr("user.manage")},
		{Key: "roles", Label: "Roles", Icon: "shield", Path: "/admin/roles", GroupName: adminGroup, GroupOrder: 2, GroupIcon: "settings", DisplayOrder: 2, RequiredPermission: strPtr("role.manage")},
		{Key: "audit", Label: "Audit Log", Icon: "list", Path: "/admin/audit", GroupName: adminGroup, GroupOrder: 2, GroupIcon: "settings", DisplayOrder: 3, RequiredPermission: strPtr("audit.view")},
	}

	for _, m := range rows {
		var exists int
		if err := db.Raw(`SELECT 1 FROM menu_items WHERE "key" = ?`, m.Key).Row().Scan(&exists); err == nil {
			continue
		}
		if err := db.Exec(
			`INSERT INTO menu_items ("key", label, icon, path, group_name, group_order, group_icon, display_order, required_permission, is_active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, true, now())`,
			m.Key, m.Label, m.Icon, m.Path, m.GroupName, m.GroupOrder, m.GroupIcon, m.DisplayOrder, m.RequiredPermission).Error; err != nil {
			log.Fatalf("failed to insert menu item %s: %v", m.Key, err)
		}
		fmt.Println("Seeded menu item:", m.Key)
	}
}

func seedAdminUser(db *gorm.DB, bcryptCost int) {
	const adminEmail = "admin@sow-analysis.local"

	var id int64
	if err := db.Raw("SELECT id FROM users WHERE email = ?", adminEmail).Row().Scan(&id); err == nil {
		fmt.Println("Admin user already exists:", adminEmail)
	} else {
		hash, err := auth.HashPassword("admin-changeme", bcryptCost)
		if err != nil {
			log.Fatalf("failed to hash admin password: %v", err)
		}
		if err := db.Exec(
			"INSERT INTO users (email, full_name, password_hash, is_active, is_verified, created_at, updated_at) VALUES (?, ?, ?, true, true, now(), now())",
			adminEmail, "System Administrator", hash).Error; err != nil {
			log.Fatalf("failed to insert admin user: %v", err)
		}
		if err := db.Raw("SELECT id FROM users WHERE email = ?", adminEmail).Row().Scan(&id); err != nil {
			log.Fatalf("admin user not found after insert: %v", err)
		}
		fmt.Println("Seeded admin user:", adminEmail)
	}

	var roleID int64
	if err := db.Raw("SELECT id FROM roles WHERE name = 'admin'").Row().Scan(&roleID); err != nil {
		log.Fatalf("admin role not found: %v", err)
	}
	var exists int
	if err := db.Raw("SELECT 1 FROM user_roles WHERE user_id = ? AND role_id = ?", id, roleID).Row().Scan(&exists); err != nil {
		if err := db.Exec(
			"INSERT INTO user_roles (user_id, role_id, assigned_by, created_at) VALUES (?, ?, NULL, now())",
			id, roleID).Error; err != nil {
			log.Fatalf("failed to assign admin role: %v", err)
		}
		fmt.Println("Assigned admin role to:", adminEmail)
	}
}

func seedPrompts(db *gorm.DB) {
	type promptSeed struct {
		ClauseID     string
		Title        string
		SystemPrompt string
		DisplayOrder int
		Variables    map[string]string
	}

	prompts := []promptSeed{
		{
			ClauseID: "liability",
			Title:    "Liability and indemnification",
			SystemPrompt: "You are a contract analyst reviewing a {document_type}. Identify liability and indemnification clauses. " +
				"Flag uncapped liability, one-sided indemnities and missing insurance requirements under {jurisdiction} law. " +
				`Respond with JSON only: {"detected": bool, "findings": [{"original_text", "compliance_status", "explanation", "suggested_revision", "risk_level"}], "overall_risk": "none|low|medium|high", "actions": []}`,
			DisplayOrder: 1,
			Variables:    map[string]string{"document_type": "Statement of Work", "jurisdiction": "Indonesian"},
		},
		{
			ClauseID: "price_escalation",
			Title:    "Price escalation and indexation",
			SystemPrompt: "You are a contract analyst reviewing a {document_type}. Find pricing, rate schedule and escalation clauses. " +
				"Normalize trigger terms such as CPI, CPI-U, inflation, COLA and indexation. Flag automatic increases without caps or notice periods. " +
				`Respond with JSON only: {"detected": bool, "findings": [{"original_text", "compliance_status", "explanation", "suggested_revision", "risk_level"}], "overall_risk": "none|low|medium|high", "actions": []}`,
			DisplayOrder: 2,
			Variables:    map[string]string{"document_type": "Statement of Work"},
		},
		{
			ClauseID: "termination",
			Title:    "Termination and exit",
			SystemPrompt: "You are a contract analyst reviewing a {document_type}. Review termination rights, notice periods and exit assistance obligations. " +
				"Flag asymmetric termination rights and missing termination-for-convenience provisions. " +
				`Respond with JSON only: {"detected": bool, "findings": [{"original_text", "compliance_status", "explanation", "suggested_revision", "risk_level"}], "overall_risk": "none|low|medium|high", "actions": []}`,
			DisplayOrder: 3,
			Variables:    map[string]string{"document_type": "Statement of Work"},
		},
	}

	for _, p := range prompts {
		var id int64
		if err := db.Raw("SELECT id FROM prompts WHERE clause_id = ?", p.ClauseID).Row().Scan(&id); err == nil {
			continue
		}
		if err := db.Exec(
			"INSERT INTO prompts (clause_id, title, system_prompt, is_active, display_order, created_at, updated_at) VALUES (?, ?, ?, true, ?, now(), now())",
			p.ClauseID, p.Title, p.SystemPrompt, p.DisplayOrder).Error; err != nil {
			log.Fatalf("failed to insert prompt %s: %v", p.ClauseID, err)
		}
		if err := db.Raw("SELECT id FROM prompts WHERE clause_id = ?", p.ClauseID).Row().Scan(&id); err != nil {
			log.Fatalf("prompt not found after insert %s: %v", p.ClauseID, err)
		}
		for name, value := range p.Variables {
			if err := db.Exec(
				"INSERT INTO prompt_variables (prompt_id, name, value, created_at) VALUES (?, ?, ?, now())",
				id, name, value).Error; err != nil {
				log.Fatalf("failed to insert variable %s for prompt %s: %v", name, p.ClauseID, err)
			}
		}
		fmt.Println("Seeded prompt:", p.ClauseID)
	}
}
