package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"buzzserver/buzzer"            // 早押し調停とルーム協調のコア
	"buzzserver/buzzer/connection" // 稼働中のWebsocket接続一覧
	"buzzserver/database"          // PostgreSQLとRedisの初期化
	"buzzserver/handlers"          // 認証まわりのHTTPハンドラー
	"buzzserver/screens"           // ルーム閲覧用のHTTPハンドラー
	"buzzserver/utils"             // ロガーの初期化とCronジョブ(放置ルームの掃除)

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

func main() {
	logger, err := utils.InitLogger() // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	// Websocket接続で用いる変数を初期化
	clients := connection.NewClientList()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	// 非同期でPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		config, err := database.LoadConfig("config.json")
		if err != nil {
			logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
		}
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		rdb, err = database.InitRedis(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	// 2つの初期化が完了するのを待つ
	<-done
	<-done

	// クーロンスケジューラのセットアップと呼び出し
	go utils.CronCleaner(db, logger)

	// ルーム協調コアの組み立て
	coordinator := buzzer.NewCoordinator(db, logger)

	router := gin.Default()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200"}, //ここにデプロイサーバーのIPアドレスを設定
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "SessionID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//各HTTPリクエストのルーティング
	router.POST("/auth/register", func(c *gin.Context) {
		handlers.Register(c, db, logger)
	})
	router.POST("/auth/login", func(c *gin.Context) {
		handlers.Login(c, db, logger)
	})
	router.GET("/buzzer/rooms", func(c *gin.Context) {
		screens.RoomList(c, coordinator.Rooms, logger)
	})
	router.GET("/buzzer/myrooms", func(c *gin.Context) {
		screens.MyRooms(c, coordinator.Rooms, logger)
	})
	router.GET("/buzzer/rooms/:code", func(c *gin.Context) {
		screens.RoomInfo(c, coordinator.Rooms, logger)
	})
	router.GET("/ws", func(c *gin.Context) {
		buzzer.HandleConnections(c.Request.Context(), c.Writer, c.Request, rdb, logger, clients, coordinator, upgrader)
	})

	// テスト時はHTTPサーバーとして運用。デフォルトポートは ":8080"
	router.Run()

	// // 本番環境ではコメントアウトを解除し、HTTPSサーバーとして運用
	// err = router.RunTLS(":443", "path/to/cert.pem", "path/to/key.pem")
	// if err != nil {
	// 	logger.Fatal("Failed to run HTTPS server: ", zap.Error(err))
	// }
}
