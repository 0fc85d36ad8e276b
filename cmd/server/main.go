package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/GualbertoOm/Ballet/internal/handlers"
	appmw "github.com/GualbertoOm/Ballet/internal/middleware"
	"github.com/GualbertoOm/Ballet/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := services.InitDB(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis is optional: without it caching is skipped and the idempotency
	// guards fall back to a bounded in-process store.
	var cache *services.RedisCache
	var idem services.IdempotencyStore
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Redis unavailable (%v), falling back to in-memory idempotency store", err)
		}
	}
	if cache != nil {
		idem = services.NewRedisIdempotencyStore(cache, 0)
	} else {
		idem = services.NewMemoryIdempotencyStore(0)
	}

	catalog := services.NewCatalogService(db, cache)
	plans := services.NewPlanService(db, catalog)
	sales := services.NewSaleService(db, catalog, plans, idem)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = appmw.CustomErrorHandler

	people := handlers.NewPeopleHandler(db)
	catalogH := handlers.NewCatalogHandler(db, catalog)
	saleH := handlers.NewSaleHandler(db, sales)
	planH := handlers.NewPlanHandler(db, plans)

	api := e.Group("/api")

	api.GET("/tutores", people.ListTutors)
	api.POST("/tutores", people.CreateTutor)
	api.GET("/estudiantes", people.ListStudents)
	api.POST("/estudiantes", people.CreateStudent)
	api.GET("/estudiantes/:id", people.GetStudent)
	api.GET("/instructores", people.ListInstructors)
	api.POST("/instructores", people.CreateInstructor)
	api.GET("/grupos", people.ListGroups)
	api.POST("/grupos", people.CreateGroup)

	api.GET("/articulos", catalogH.ListArticles)
	api.POST("/articulos", catalogH.CreateArticle)
	api.PUT("/articulos/:id", catalogH.UpdateArticle)
	api.DELETE("/articulos/:id", catalogH.DeleteArticle)
	api.GET("/conceptos", catalogH.ListConcepts)
	api.POST("/conceptos", catalogH.CreateConcept)
	api.GET("/conceptos/:id/info", catalogH.GetConceptInfo)
	api.PUT("/conceptos/:id", catalogH.UpdateConcept)
	api.DELETE("/conceptos/:id", catalogH.DeleteConcept)
	api.GET("/paquetes", catalogH.ListPackages)
	api.POST("/paquetes", catalogH.CreatePackage)
	api.GET("/paquetes/:id", catalogH.GetPackageInfo)
	api.DELETE("/paquetes/:id", catalogH.DeletePackage)

	api.POST("/ventas", saleH.SubmitSale)
	api.GET("/ventas", saleH.ListSales)
	api.GET("/ventas/pendientes", saleH.ListPending)
	api.GET("/ventas/:id", saleH.GetSale)
	api.DELETE("/ventas/:id", saleH.DeleteSale)

	api.GET("/estudiantes/:id/planes", planH.ListStudentPlans)
	api.GET("/planes/:id", planH.GetPlan)
	api.POST("/planes/:id/entrega", planH.MarkDelivered)
	api.POST("/planes/:id/cancelar", planH.CancelPlan)
	api.DELETE("/abonos/:id", planH.DeleteInstallment)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
