package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           captiond API
// @version         1.0
// @description     HTTP API for image captioning with a pretrained vision-encoder-decoder model.
//
// @contact.name   captiond maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
