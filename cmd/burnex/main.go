package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// 在任何 ENV 读取前，加载工作目录下的 .env（缺失忽略，不覆盖已有 ENV）。
	_ = godotenv.Load()
	os.Exit(execute())
}
