package main

type Config struct {
	ServerAddr string `env:"CHAT_SERVER_ADDR,default=ws://127.0.0.1:8080/"`
	LogLevel   string `env:"LOG_LEVEL,default=WARN"`
	Colours    bool   `env:"CLIENT_COLOURS,default=true"`
}
