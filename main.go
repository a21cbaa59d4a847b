package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/bibmap/bibmap-api/auth"
	"github.com/bibmap/bibmap-api/config"
	"github.com/bibmap/bibmap-api/handlers"
	"github.com/bibmap/bibmap-api/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func init() {
	// Load .env file if not in production environment
	if os.Getenv("RAILWAY_ENVIRONMENT_NAME") == "" {
		err := godotenv.Load()
		if err != nil {
			log.Printf("Warning: .env file not found, environment variables might not be loaded: %v", err)
		}
	}
}

func corsOrigins() []string {
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		origins := strings.Split(raw, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		return origins
	}
	return []string{"http://localhost:3000", "http://localhost:5173"}
}

func main() {
	// Initialize database connection
	config.Connect()

	if err := auth.BootstrapAdmin(config.Database); err != nil {
		log.Fatalf("admin bootstrap failed: %v", err)
	}

	DBHandler := &handlers.DBHandler{DB: config.Database}
	mux := http.NewServeMux()

	withUser := middleware.WithUser(config.Database)
	requireUser := middleware.RequireUser(config.Database)
	requireAdmin := middleware.RequireAdmin(config.Database)

	mux.HandleFunc("GET /api/health", DBHandler.Health)

	// Auth
	mux.HandleFunc("POST /api/auth/register", DBHandler.Register)
	mux.HandleFunc("POST /api/auth/login", DBHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", DBHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", requireUser(DBHandler.GetMe))
	mux.HandleFunc("PUT /api/auth/me", requireUser(DBHandler.UpdateMe))
	mux.HandleFunc("PUT /api/auth/me/password", requireUser(DBHandler.ChangePassword))

	// User administration
	mux.HandleFunc("GET /api/auth/users", requireAdmin(DBHandler.ListUsers))
	mux.HandleFunc("POST /api/auth/users", requireAdmin(DBHandler.CreateUser))
	mux.HandleFunc("GET /api/auth/users/{userID}", requireAdmin(DBHandler.GetUser))
	mux.HandleFunc("PUT /api/auth/users/{userID}", requireAdmin(DBHandler.UpdateUser))
	mux.HandleFunc("DELETE /api/auth/users/{userID}", requireAdmin(DBHandler.DeleteUser))
	mux.HandleFunc("POST /api/auth/users/{userID}/reset-password", requireAdmin(DBHandler.ResetUserPassword))

	// Bib maps
	mux.HandleFunc("GET /api/bibmaps", withUser(DBHandler.ListBibMaps))
	mux.HandleFunc("POST /api/bibmaps", withUser(DBHandler.CreateBibMap))
	mux.HandleFunc("GET /api/bibmaps/{bibmapID}", withUser(DBHandler.GetBibMap))
	mux.HandleFunc("PUT /api/bibmaps/{bibmapID}", withUser(DBHandler.UpdateBibMap))
	mux.HandleFunc("DELETE /api/bibmaps/{bibmapID}", withUser(DBHandler.DeleteBibMap))
	mux.HandleFunc("PUT /api/bibmaps/{bibmapID}/publish", withUser(DBHandler.PublishBibMap))
	mux.HandleFunc("PUT /api/bibmaps/{bibmapID}/unpublish", withUser(DBHandler.UnpublishBibMap))
	mux.HandleFunc("GET /api/bibmaps/public/{bibmapID}", DBHandler.GetPublicBibMap)

	// Nodes
	mux.HandleFunc("POST /api/nodes", withUser(DBHandler.CreateNode))
	mux.HandleFunc("GET /api/nodes/{nodeID}", withUser(DBHandler.GetNode))
	mux.HandleFunc("PUT /api/nodes/{nodeID}", withUser(DBHandler.UpdateNode))
	mux.HandleFunc("DELETE /api/nodes/{nodeID}", withUser(DBHandler.DeleteNode))
	mux.HandleFunc("PUT /api/nodes/{nodeID}/position", withUser(DBHandler.UpdateNodePosition))
	mux.HandleFunc("PUT /api/nodes/{nodeID}/size", withUser(DBHandler.UpdateNodeSize))
	mux.HandleFunc("GET /api/nodes/{nodeID}/references", withUser(DBHandler.GetNodeReferences))
	mux.HandleFunc("GET /api/nodes/{nodeID}/media", withUser(DBHandler.GetNodeMedia))
	mux.HandleFunc("GET /api/nodes/public/{nodeID}/references", DBHandler.GetPublicNodeReferences)
	mux.HandleFunc("GET /api/nodes/public/{nodeID}/media", DBHandler.GetPublicNodeMedia)

	// Connections
	mux.HandleFunc("POST /api/connections", withUser(DBHandler.CreateConnection))
	mux.HandleFunc("GET /api/connections/{connectionID}", withUser(DBHandler.GetConnection))
	mux.HandleFunc("PUT /api/connections/{connectionID}", withUser(DBHandler.UpdateConnection))
	mux.HandleFunc("DELETE /api/connections/{connectionID}", withUser(DBHandler.DeleteConnection))

	// Taxonomies
	mux.HandleFunc("GET /api/taxonomies", withUser(DBHandler.ListTaxonomies))
	mux.HandleFunc("POST /api/taxonomies", withUser(DBHandler.CreateTaxonomy))
	mux.HandleFunc("POST /api/taxonomies/global", requireAdmin(DBHandler.CreateGlobalTaxonomy))
	mux.HandleFunc("GET /api/taxonomies/{taxonomyID}", withUser(DBHandler.GetTaxonomy))
	mux.HandleFunc("PUT /api/taxonomies/{taxonomyID}", withUser(DBHandler.UpdateTaxonomy))
	mux.HandleFunc("DELETE /api/taxonomies/{taxonomyID}", withUser(DBHandler.DeleteTaxonomy))
	mux.HandleFunc("GET /api/taxonomies/{taxonomyID}/references", withUser(DBHandler.GetTaxonomyReferences))
	mux.HandleFunc("GET /api/taxonomies/{taxonomyID}/nodes", withUser(DBHandler.GetTaxonomyNodes))

	// References
	mux.HandleFunc("GET /api/references", withUser(DBHandler.ListReferences))
	mux.HandleFunc("POST /api/references", withUser(DBHandler.CreateReference))
	mux.HandleFunc("POST /api/references/import", withUser(DBHandler.ImportBibTeX))
	mux.HandleFunc("GET /api/references/{referenceID}", withUser(DBHandler.GetReference))
	mux.HandleFunc("PUT /api/references/{referenceID}", withUser(DBHandler.UpdateReference))
	mux.HandleFunc("PUT /api/references/{referenceID}/bibtex", withUser(DBHandler.UpdateReferenceFromBibTeX))
	mux.HandleFunc("DELETE /api/references/{referenceID}", withUser(DBHandler.DeleteReference))

	// Media
	mux.HandleFunc("GET /api/media", withUser(DBHandler.ListMedia))
	mux.HandleFunc("POST /api/media", withUser(DBHandler.CreateMedia))
	mux.HandleFunc("GET /api/media/{mediaID}", withUser(DBHandler.GetMedia))
	mux.HandleFunc("PUT /api/media/{mediaID}", withUser(DBHandler.UpdateMedia))
	mux.HandleFunc("DELETE /api/media/{mediaID}", withUser(DBHandler.DeleteMedia))

	// Settings
	mux.HandleFunc("GET /api/settings", requireUser(DBHandler.GetSettings))
	mux.HandleFunc("PUT /api/settings", requireUser(DBHandler.UpdateSettings))
	mux.HandleFunc("POST /api/settings/reset", requireUser(DBHandler.ResetSettings))

	// Configure CORS with specific options
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(mux)

	// Server configuration

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080" // fallback port for local development
	}
	serverAddr := "0.0.0.0:" + port

	http.ListenAndServe(serverAddr, corsHandler)
}
